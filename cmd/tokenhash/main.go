package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Generates a bearer token for the local API and the hash to put in API_TOKEN_HASH.
func main() {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Token:          %s\n", token)
	fmt.Printf("API_TOKEN_HASH: %s\n", hash)
}
