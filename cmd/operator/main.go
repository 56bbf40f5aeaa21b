// Command operator connects to a running assistant's socket to follow
// conversations live or to simulate contacts.
package main

import (
	"fmt"
	"os"

	"whatsapp-assistant/cmd/operator/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
