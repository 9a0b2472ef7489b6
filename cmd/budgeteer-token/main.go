// Command budgeteer-token mints a session token for an owner id, for
// operators and local testing. Sign-up and login live elsewhere.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"budgeteer/internal/auth"
	"budgeteer/internal/cli"
	"budgeteer/internal/log"
)

func main() {
	owner := flag.String("owner", "", "owner id to put in the token")
	validity := flag.Duration("validity", 24*time.Hour, "token lifetime")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAuth)

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters")
		os.Exit(1)
	}
	if *owner == "" {
		logger.Error("missing -owner")
		flag.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken(*owner, []byte(secret), *validity)
	if err != nil {
		logger.Error("Failed to sign token", log.FieldError, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
