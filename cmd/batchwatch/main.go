// batchwatch watches filesystem paths and acts on debounced batches of changes.
package main

import (
	"os"

	"github.com/hupe1980/batchwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
