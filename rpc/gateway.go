// Package rpc provides the uniform calling convention for the named routines
// of the central vision_data schema. Every persisted-state access in the
// server goes through Gateway; callers own the correctness of positional
// parameter order, which must match the routine signature exactly.
package rpc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"visionlink/config"
)

// ErrExecution marks statement and data errors caught at the gateway
// boundary. Pool and connectivity failures are returned as-is.
var ErrExecution = errors.New("routine execution failed")

type Gateway struct {
	db *sql.DB
}

func Open(cfg *config.DatabaseConfig) (*Gateway, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	return &Gateway{db: db}, nil
}

// NewGateway wraps an existing pool. Used by tests.
func NewGateway(db *sql.DB) *Gateway { return &Gateway{db: db} }

func (g *Gateway) Close() error { return g.db.Close() }

func (g *Gateway) Ping(ctx context.Context) error { return g.db.PingContext(ctx) }

// Function executes SELECT schema.name($1..$n) and returns the single result
// column of each row as raw JSON. One pooled connection per call; the pool
// releases it on every exit path.
func (g *Gateway) Function(ctx context.Context, schema, name string, params ...any) ([]json.RawMessage, error) {
	query := fmt.Sprintf("SELECT %s.%s(%s)", schema, name, placeholders(len(params)))
	rows, err := g.db.QueryContext(ctx, query, params...)
	if err != nil {
		if isConnErr(err) {
			return nil, err
		}
		log.Printf("rpc: %s.%s: %v", schema, name, err)
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrExecution, schema, name, err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			log.Printf("rpc: %s.%s scan: %v", schema, name, err)
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrExecution, schema, name, err)
		}
		results = append(results, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrExecution, schema, name, err)
	}
	return results, nil
}

// Procedure executes CALL schema.name($1..$n). No result set.
func (g *Gateway) Procedure(ctx context.Context, schema, name string, params ...any) error {
	query := fmt.Sprintf("CALL %s.%s(%s)", schema, name, placeholders(len(params)))
	if _, err := g.db.ExecContext(ctx, query, params...); err != nil {
		if isConnErr(err) {
			return err
		}
		log.Printf("rpc: %s.%s: %v", schema, name, err)
		return fmt.Errorf("%w: %s.%s: %v", ErrExecution, schema, name, err)
	}
	return nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// isConnErr separates outage (pool, dial, context) from bad statements and
// data, which are the gateway's to tag.
func isConnErr(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
