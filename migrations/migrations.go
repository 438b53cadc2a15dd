// Package migrations holds the PostgreSQL schema for the payroll service.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
)

//go:embed *.up.sql
var files embed.FS

// Apply executes every *.up.sql file in name order. Each file is idempotent,
// so Apply is safe to run on every start.
func Apply(ctx context.Context, db *database.DB) error {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		// No arguments, so pgx uses the simple protocol and accepts multiple statements
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		slog.Info("Migration applied", "file", name)
	}
	return nil
}
