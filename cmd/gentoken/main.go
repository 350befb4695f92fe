package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sathvikchoudar61/EduStealth/internal/crypto"
)

func main() {
	secret := flag.String("secret", "", "JWT secret (defaults to JWT_SECRET env)")
	userID := flag.String("user", "", "User UUID (random if omitted)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: gentoken -secret <jwt-secret> [-user <uuid>] [-ttl <duration>]")
		fmt.Fprintln(os.Stderr, "  Reads JWT_SECRET from the environment if -secret not specified")
		os.Exit(1)
	}

	if *userID == "" {
		*userID = uuid.NewString()
	} else if _, err := uuid.Parse(*userID); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid user id: %v\n", err)
		os.Exit(1)
	}

	token, err := crypto.MintUserToken(*secret, *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User:  %s\n", *userID)
	fmt.Printf("Token: %s\n", token)
}
