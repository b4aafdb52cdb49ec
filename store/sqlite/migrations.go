package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Orbit store (SQLite).
var Migrations = migrate.NewGroup("orbit")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_orbit_kv",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS orbit_kv (
    key        TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    value      BLOB,
    deleted    INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orbit_kv_kind ON orbit_kv (kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS orbit_kv`)
				return err
			},
		},
	)
}
