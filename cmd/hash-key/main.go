package main

import (
	"fmt"
	"os"

	"github.com/solegrid/syncapi/internal/api/middleware"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/hash-key/main.go <api-key>")
		fmt.Println("Prints the bcrypt hash to store in SYNC_API_KEY_HASH")
		os.Exit(1)
	}

	hash, err := middleware.HashAPIKey(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("SYNC_API_KEY_HASH=%s\n", hash)
}
