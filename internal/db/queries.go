package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adamavenir/parley/internal/core"
	"modernc.org/sqlite"
)

// sqliteConstraint is the primary result code under every extended constraint code.
const sqliteConstraint = 19

// ErrNotFound is returned by mutations that target a missing row.
var ErrNotFound = errors.New("not found")

func generateUniqueID(ctx context.Context, db DBTX, table, prefix string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id, err := core.GenerateGUID(prefix)
		if err != nil {
			return "", err
		}
		row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id)
		var exists int
		err = row.Scan(&exists)
		if err == sql.ErrNoRows {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate unique %s id", prefix)
}

func nullableValue[T any](value *T) any {
	if value == nil {
		return nil
	}
	return *value
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqliteConstraint
	}
	return false
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullIntPtr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func expectOneRow(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
