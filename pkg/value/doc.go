// Invariant: pkg/store/boltstore's byte encoding of a Value for use as a
// bbolt key must be order-preserving with respect to Compare — bbolt
// cursors walk keys in raw byte-lexicographic order, so the encoding and
// the comparator must agree exactly or range scans silently miss rows.
package value
