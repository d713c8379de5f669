// Command tokengen mints an access token for local development, e.g.
//
//	go run ./cmd/tokengen -user 7 -role organizer
//
// The secret is read from JWT_SECRET (or .env), like the server does.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

func main() {
	_ = godotenv.Load()

	userID := flag.Uint64("user", 1, "user id (token subject)")
	role := flag.String("role", model.RoleUser, "role: user, organizer or admin")
	su := flag.Bool("su", false, "mark the token as superuser")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if !model.ValidRole(*role) {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *userID, *role, *su, *ttl)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Println(tok.Token)
}
