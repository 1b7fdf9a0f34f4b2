// Command genkey generates a device API key and the hash that goes into
// the kiosk's API_KEY_HASH environment variable.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
)

func main() {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	key := hex.EncodeToString(raw)
	fmt.Printf("KEY=%s\nAPI_KEY_HASH=%s\n", key, middleware.HashAPIKey(key))
}
