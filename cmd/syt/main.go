package main

import (
	"os"

	"github.com/syt-tools/syt/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
