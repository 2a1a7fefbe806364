// Command relq bootstraps a pkg/engine.Engine from a YAML config file
// and hands it to pkg/repl. Grounded on the teacher's
// flag.Parse/log.Fatalf bootstrapping shape (main.go), not its
// bubbletea/lipgloss UI layer.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/relq/relq/pkg/engine"
	"github.com/relq/relq/pkg/relqlog"
	"github.com/relq/relq/pkg/repl"
)

func main() {
	configPath := flag.String("config", "", "YAML file declaring stores and their sources")
	flag.Parse()

	if *configPath == "" {
		log.Fatalf("relq: -config is required, naming a YAML file of stores (see pkg/engine.Config)")
	}

	e := engine.New(relqlog.WithLogger(relqlog.Resolve()))

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("relq: %v", err)
	}
	if err := engine.RegisterAll(e, cfg); err != nil {
		log.Fatalf("relq: %v", err)
	}

	fmt.Println("relq — type `help` for commands, `quit` to exit")
	repl.Run(e, os.Stdin, os.Stdout)
}
