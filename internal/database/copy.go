package database

import (
	"context"
	"errors"
	"fmt"

	"pichost/internal/logging"
)

// CopyResult counts the rows handled by Copy.
type CopyResult struct {
	Copied  int `json:"copied" yaml:"copied"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Copy inserts every row of src into dst, oldest first, keeping created_at
// and the published flag. Rows whose filename already exists in dst are
// skipped, so an interrupted copy can be rerun.
func Copy(ctx context.Context, src, dst Catalog) (CopyResult, error) {
	var result CopyResult

	rows, err := src.Query(ctx, Filter{}, OrderCreatedDesc)
	if err != nil {
		return result, fmt.Errorf("failed to read source catalog: %w", err)
	}

	for i := len(rows) - 1; i >= 0; i-- {
		rec := rows[i]
		rec.ID = 0
		err := dst.Insert(ctx, rec)
		switch {
		case err == nil:
			result.Copied++
		case errors.Is(err, ErrDuplicateKey):
			result.Skipped++
		default:
			return result, fmt.Errorf("failed to copy %s: %w", rec.Filename, err)
		}
	}

	logging.Info("Copied %d rows (%d already present)", result.Copied, result.Skipped)
	return result, nil
}
