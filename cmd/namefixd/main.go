package main

import (
	"os"

	"namefix/internal/log"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Errorf("namefixd: %v", err)
		os.Exit(1)
	}
}
