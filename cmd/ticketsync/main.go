package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal; the environment is used as is.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
