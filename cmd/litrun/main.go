package main

import (
	"log"

	"litrun/cmd/litrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
