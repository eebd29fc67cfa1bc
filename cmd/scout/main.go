// Command scout finds the faculty of a university department and retrieves
// and confirms their papers with an LLM tool-calling agent.
package main

import (
	"errors"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := NewOptions()
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "Search school websites for professors and confirm their publications."

	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Stdout.WriteString(ferr.Message + "\n")
			return 0
		}
		log.Printf("scout: %v", err)
		return 1
	}
	return 0
}
