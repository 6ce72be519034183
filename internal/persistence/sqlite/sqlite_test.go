// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "t.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateIsIncremental(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.sqlite")
	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	v1 := []Migration{{Version: 1, SQL: "CREATE TABLE a (id INTEGER PRIMARY KEY);"}}
	require.NoError(t, Migrate(ctx, db, v1))
	require.NoError(t, Migrate(ctx, db, v1), "re-running is a no-op")

	v2 := append(v1, Migration{Version: 2, SQL: "CREATE TABLE b (id INTEGER PRIMARY KEY);"})
	require.NoError(t, Migrate(ctx, db, v2))

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, 2, version)

	issues, err := VerifyIntegrity(ctx, path, false)
	require.NoError(t, err)
	assert.Nil(t, issues)
	issues, err = VerifyIntegrity(ctx, path, true)
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestVerifyIntegrityRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a database file, just text padding it out"), 0o600))
	_, err := VerifyIntegrity(context.Background(), path, false)
	assert.Error(t, err)
}

func TestMigrateRejectsGaps(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "g.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	err = Migrate(context.Background(), db, []Migration{{Version: 2, SQL: "SELECT 1"}})
	assert.Error(t, err)
}
