// Command wardkeep is the domain-separation boundary keeper: it seals a
// policy engine over a domain partition, runs the integrity guardian,
// and serves boundary decisions over the CLI and MCP.
package main

import "github.com/wardkeep/wardkeep/internal/cli"

func main() {
	cli.Execute()
}
