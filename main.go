package main

import (
	"log"

	"github.com/anoixa/cerberus/cmd"
	"github.com/anoixa/cerberus/config"
)

func main() {
	log.Printf("cerberus %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
