package main

import (
	"os"

	"github.com/GalaDe/payments-webhooks/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
