// Command admintoken prints a bearer token for the /security/admin routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"security-service/internal/auth"
)

func main() {
	subject := flag.String("subject", "ops", "value of the sub claim")
	ttl := flag.Duration("ttl", 15*time.Minute, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET"))
	token, err := auth.IssueAdminToken(secret, *subject, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue admin token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
