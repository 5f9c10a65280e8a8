package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/vaultkey/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		if !cmd.Reported(err) {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
