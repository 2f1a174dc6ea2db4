package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, voice, input_file, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Status, job.Voice, job.InputFile, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var (
		j      models.Job
		result []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, voice, input_file, result, error_message, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Status, &j.Voice, &j.InputFile, &result, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if len(result) > 0 {
		var r models.ReactionResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		j.Result = &r
	}
	return &j, nil
}

// UpdateJobStatus locks the row, validates the transition, and applies it in one transaction.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := applyOptions(opts)

	var result []byte
	if params.Result != nil {
		b, err := json.Marshal(params.Result)
		if err != nil {
			return fmt.Errorf("encode job result: %w", err)
		}
		result = b
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var currentStatus string
		err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&currentStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}

		if err := CheckTransition(currentStatus, status); err != nil {
			return err
		}

		now := time.Now().UTC()
		query := `UPDATE jobs SET status = $2, updated_at = $3`
		args := []any{id, status, now}
		argIdx := 4

		if status == models.JobStatusProcessing {
			query += fmt.Sprintf(", started_at = $%d", argIdx)
			args = append(args, now)
			argIdx++
		}
		if models.IsTerminal(status) {
			query += fmt.Sprintf(", completed_at = $%d", argIdx)
			args = append(args, now)
			argIdx++
		}
		if params.ErrorMessage != nil {
			query += fmt.Sprintf(", error_message = $%d", argIdx)
			args = append(args, *params.ErrorMessage)
			argIdx++
		}
		if result != nil {
			query += fmt.Sprintf(", result = $%d", argIdx)
			args = append(args, result)
			argIdx++
		}

		query += " WHERE id = $1"

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		return nil
	})
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
