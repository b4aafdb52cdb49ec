package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Orbit store.
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
    value      BYTEA,
    deleted    BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_orbit_kv_kind ON orbit_kv (kind) WHERE NOT deleted;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS orbit_kv`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_orbit_kv_purge_index",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_orbit_kv_tombstones ON orbit_kv (updated_at) WHERE deleted;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP INDEX IF EXISTS idx_orbit_kv_tombstones`)
				return err
			},
		},
	)
}
