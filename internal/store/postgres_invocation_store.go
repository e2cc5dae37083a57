package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/curveflow/internal/domain"
	_ "github.com/lib/pq"
)

const invocationSchemaSQL = `
CREATE TABLE IF NOT EXISTS invocations (
	id TEXT PRIMARY KEY,
	node TEXT NOT NULL,
	status TEXT NOT NULL,
	inputs JSONB NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	result JSONB,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

const selectInvocationSQL = `SELECT id, node, status, inputs, webhook_url, result, error, created_at, updated_at
	 FROM invocations
	 WHERE id = $1`

type PostgresInvocationStore struct {
	db *sql.DB
}

func NewPostgresInvocationStore(ctx context.Context, dsn string) (*PostgresInvocationStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresInvocationStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresInvocationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, invocationSchemaSQL); err != nil {
		return fmt.Errorf("ensure invocations schema: %w", err)
	}
	return nil
}

func (s *PostgresInvocationStore) Close() error {
	return s.db.Close()
}

func (s *PostgresInvocationStore) Create(ctx context.Context, inv domain.Invocation) error {
	inputsJSON, err := json.Marshal(inv.Inputs)
	if err != nil {
		return fmt.Errorf("marshal invocation inputs: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO invocations (id, node, status, inputs, webhook_url, result, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID,
		inv.Node,
		inv.Status,
		inputsJSON,
		inv.WebhookURL,
		nullableJSON(inv.Result),
		inv.Error,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}

	return nil
}

func (s *PostgresInvocationStore) Get(ctx context.Context, id string) (domain.Invocation, bool, error) {
	row := s.db.QueryRowContext(ctx, selectInvocationSQL, id)

	var (
		inv        domain.Invocation
		inputsJSON []byte
		resultJSON []byte
	)
	if err := row.Scan(
		&inv.ID,
		&inv.Node,
		&inv.Status,
		&inputsJSON,
		&inv.WebhookURL,
		&resultJSON,
		&inv.Error,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invocation{}, false, nil
		}
		return domain.Invocation{}, false, fmt.Errorf("query invocation: %w", err)
	}

	if err := json.Unmarshal(inputsJSON, &inv.Inputs); err != nil {
		return domain.Invocation{}, false, fmt.Errorf("unmarshal invocation inputs: %w", err)
	}
	if len(resultJSON) > 0 {
		inv.Result = json.RawMessage(resultJSON)
	}

	return inv, true, nil
}

func (s *PostgresInvocationStore) UpdateStatus(ctx context.Context, id, status string) (domain.Invocation, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE invocations
		 SET status = $1, updated_at = $2
		 WHERE id = $3`,
		status,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Invocation{}, fmt.Errorf("update invocation status: %w", err)
	}
	return s.reload(ctx, id, res)
}

func (s *PostgresInvocationStore) Complete(ctx context.Context, id, status string, result json.RawMessage, errMsg string) (domain.Invocation, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE invocations
		 SET status = $1, result = $2, error = $3, updated_at = $4
		 WHERE id = $5`,
		status,
		nullableJSON(result),
		errMsg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Invocation{}, fmt.Errorf("complete invocation: %w", err)
	}
	return s.reload(ctx, id, res)
}

func (s *PostgresInvocationStore) reload(ctx context.Context, id string, res sql.Result) (domain.Invocation, error) {
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.Invocation{}, ErrInvocationNotFound
	}

	inv, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Invocation{}, err
	}
	if !ok {
		return domain.Invocation{}, ErrInvocationNotFound
	}
	return inv, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
