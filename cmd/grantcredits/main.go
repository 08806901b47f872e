// Command grantcredits tops up a user's generation credit balance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fanai-server/internal/adapter/repo"
)

func main() {
	var (
		idFlag     string
		amountFlag int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to credit (UUID)")
	flag.IntVar(&amountFlag, "amount", 5, "number of credits to grant")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}
	if amountFlag <= 0 {
		exitWithError(fmt.Errorf("amount %d must be positive", amountFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	users := repo.NewUserRepository(pool)
	if err := users.GrantCredits(ctx, userID, amountFlag); err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to reload user: %w", err))
	}
	fmt.Printf("user %s (%s) now has %d credits\n", user.ID, user.Email, user.Credits)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
