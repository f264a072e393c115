package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const partInspectionQuery = `SELECT passed FROM part_inspections WHERE station = $1 AND code = $2 ORDER BY inspected_at DESC LIMIT 1`

// QualityDBClient reads inspection results from the external quality database
type QualityDBClient struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenQualityDB connects to the quality database
func OpenQualityDB(dsn string, timeout time.Duration) (*QualityDBClient, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open quality database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewQualityDBClient(db, timeout), nil
}

// NewQualityDBClient wraps an existing connection
func NewQualityDBClient(db *sql.DB, timeout time.Duration) *QualityDBClient {
	return &QualityDBClient{db: db, timeout: timeout}
}

// PartPassed reports whether the newest inspection of code at station passed
func (c *QualityDBClient) PartPassed(ctx context.Context, station, code string) (bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var passed bool
	err := c.db.QueryRowContext(ctx, partInspectionQuery, station, code).Scan(&passed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query part inspection: %w", err)
	}
	return passed, nil
}

// Close closes the connection pool
func (c *QualityDBClient) Close() error {
	return c.db.Close()
}
