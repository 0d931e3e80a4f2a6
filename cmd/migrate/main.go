package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"genstudio/internal/infra"
)

func main() {
	var directionFlag string
	flag.StringVar(&directionFlag, "direction", "up", "migration direction (up, down, status)")
	flag.Parse()

	_ = godotenv.Load()

	direction := strings.ToLower(strings.TrimSpace(directionFlag))
	switch direction {
	case "up", "down", "status":
	default:
		exitWithError(fmt.Errorf("unsupported direction %q", directionFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(fmt.Errorf("DATABASE_URL is required"))
	}

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := infra.Migrate(ctx, dbURL, direction, logger); err != nil {
		exitWithError(err)
	}
	fmt.Printf("migrations %s complete\n", direction)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
