// Command semcode indexes a codebase and searches it with hybrid
// BM25 + semantic retrieval, entirely locally.
package main

import (
	"os"

	"github.com/semcode-dev/semcode/cmd/semcode/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
