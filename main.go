package main

import (
	"os"

	"rbd-backup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
