package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"chat-rooms/internal/config"
	"chat-rooms/pkg/logger"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Seeder creates users and rooms ahead of time. User and room management
// belongs to other services; this exists for bootstrapping and tests.
type Seeder interface {
	EnsureUser(ctx context.Context, name string) (int, error)
	EnsureRoom(ctx context.Context, name string) (int, error)
}

func loadSchema(driver string) (string, error) {
	content, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return "", fmt.Errorf("read %s schema: %w", driver, err)
	}
	return string(content), nil
}

// splitStatements breaks a schema file into individual statements.
func splitStatements(schema string) []string {
	var statements []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresDB(ctx, cfg.URL)
	case config.DriverSQLite:
		return NewSQLiteDB(ctx, cfg.SQLitePath)
	case config.DriverMemory:
		logger.Warn("Using in-memory store, messages will not survive a restart")
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Seed makes sure the named users and rooms exist.
func Seed(ctx context.Context, db Database, users, rooms []string) error {
	seeder, ok := db.(Seeder)
	if !ok {
		return errors.New("database does not support seeding")
	}
	for _, name := range users {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		if _, err := seeder.EnsureUser(ctx, name); err != nil {
			return fmt.Errorf("seed user %q: %w", name, err)
		}
	}
	for _, name := range rooms {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		if _, err := seeder.EnsureRoom(ctx, name); err != nil {
			return fmt.Errorf("seed room %q: %w", name, err)
		}
	}
	return nil
}
