// dyncall rewrites direct Swift function calls into dispatch through
// per-file route tables.
package main

import (
	"github.com/Swingft/dyncall/cmd/dyncall/cmd"
)

func main() {
	cmd.Execute()
}
