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

	"genstudio/internal/adapter/repo"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

func main() {
	var (
		idFlag       string
		emailFlag    string
		standingFlag string
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&standingFlag, "standing", "active", "standing to assign (active, suspended, banned)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	standing := domain.OwnerStanding(strings.TrimSpace(strings.ToLower(standingFlag)))

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	switch standing {
	case domain.OwnerStandingActive, domain.OwnerStandingSuspended, domain.OwnerStandingBanned:
	default:
		exitWithError(fmt.Errorf("unsupported standing %q", standingFlag))
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

	logger := infra.NewLogger("cli", "ownerstanding")
	users := repo.NewUserRepository(infra.NewSQLRunner(pool, logger))

	var user *domain.User
	if userID != "" {
		user, err = users.GetByID(ctx, userID)
	} else {
		user, err = users.GetByEmail(ctx, email)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to load user: %w", err))
	}

	previous := user.Standing
	updated, err := users.SetStanding(ctx, user.ID, standing)
	if err != nil {
		exitWithError(fmt.Errorf("failed to update standing: %w", err))
	}

	fmt.Printf("User %s (%s) standing %s -> %s\n", updated.ID, updated.Email, previous, updated.Standing)
	if !updated.Standing.InGoodStanding() {
		fmt.Println("queued jobs for this user will fail on their next attempt")
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
