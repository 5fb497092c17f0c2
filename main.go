// The main package for the favharvester executable.
package main

import (
	"github.com/mchale/favicon-harvester/cmd"
)

func main() {
	cmd.Execute()
}
