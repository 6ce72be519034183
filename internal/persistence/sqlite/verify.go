// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// VerifyIntegrity opens path read-only and runs PRAGMA quick_check, or
// integrity_check when full is set. It returns the diagnostic rows when the
// file is damaged and nil when it is healthy.
func VerifyIntegrity(ctx context.Context, path string, full bool) ([]string, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open for verification: %w", err)
	}
	defer db.Close()

	pragma := "PRAGMA quick_check"
	if full {
		pragma = "PRAGMA integrity_check"
	}
	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
	}
	defer rows.Close()

	var diag []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", pragma, err)
		}
		diag = append(diag, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(diag) == 1 && strings.EqualFold(diag[0], "ok"):
		return nil, nil
	case len(diag) == 0:
		return []string{"integrity check returned no rows"}, nil
	}
	return diag, nil
}
