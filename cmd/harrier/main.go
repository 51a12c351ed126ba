// harrier checks Python source trees: a combined semantic
// type-checker and lint engine over an incremental query database.
package main

import (
	"os"

	"github.com/harrier-dev/harrier/cmd/harrier/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
