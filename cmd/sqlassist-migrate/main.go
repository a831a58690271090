package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/migrations"
	sessionpostgres "github.com/sqlassist/sqlassist/internal/session/postgres"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("sqlassist-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Sessions.DSN == "" {
		fmt.Fprintln(os.Stderr, "SQLASSIST_SESSIONS_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// DDL runs without the statement timeout the services use.
	db, err := sessionpostgres.Open(ctx, sessionpostgres.DBConfig{
		DSN:             cfg.Sessions.DSN,
		ApplicationName: cfg.Service.Name,
		LockTimeout:     cfg.Sessions.LockTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		reverted, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", reverted)
	case "status":
		status, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("current version %d, %d pending %v\n", status.Current, len(status.Pending), status.Pending)
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
