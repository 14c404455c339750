package main

import (
	"os"

	"github.com/casechat/casechat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
