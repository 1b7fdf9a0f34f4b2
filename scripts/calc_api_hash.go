package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// calc_api_hash.go - hashes an operator-chosen device key into the
// API_KEY_HASH value the kiosk expects.
//
// Usage:
//   go run scripts/calc_api_hash.go <api_key>
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/calc_api_hash.go <api_key>")
		os.Exit(1)
	}

	hash := sha256.Sum256([]byte(os.Args[1]))
	fmt.Println(hex.EncodeToString(hash[:]))
}
