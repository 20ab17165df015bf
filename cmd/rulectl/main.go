// Command rulectl is the CLI front end for the reconciliation engine:
// a thin cobra wrapper that loads configuration and invokes the
// engine's public operations (refresh, push, and the mutation verbs).
// It holds no business logic of its own.
package main

import "github.com/rulectl/rulectl/cmd/rulectl/cmd"

func main() {
	cmd.Execute()
}
