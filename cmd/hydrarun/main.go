package main

import (
	"os"

	"github.com/proxsoc/hydra-runner/cmd/hydrarun/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
