// Command darklens audits web pages for GDPR dark patterns.
package main

import (
	"os"

	"github.com/raysh454/darklens/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
