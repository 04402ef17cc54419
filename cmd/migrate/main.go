// Command migrate applies, rolls back or inspects the embedded schema
// migrations without starting the server. It reads the same database
// environment variables as the server binary.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/internal/migrate"
)

func main() {
	command := "status"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	sqldb, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	m := migrate.NewMigrator(db, log)

	switch command {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.Status(ctx)
	case "version":
		var v int64
		if v, err = m.Version(ctx); err == nil {
			fmt.Printf("migration version: %d\n", v)
		}
	default:
		fmt.Println("Usage: migrate [up|down|status|version]")
		fmt.Println("\nDatabase connection settings come from the environment,")
		fmt.Println("using the same variables as the server.")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
