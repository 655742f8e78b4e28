// Package postgres is the relational driver for the run store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"
	repository "rcmos/internal/repository/iface"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var runColumnNames = []string{
	"id", "purpose", "payer_id", "provider_npi", "status", "source",
	"input_payload", "output_payload", "error_code", "error_msg", "created_at", "updated_at",
}

var runColumns = strings.Join(runColumnNames, ", ")

type runRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewRunRepository(pool *pgxpool.Pool, log logger.Logger) repository.RunRepository {
	return &runRepository{
		pool:   pool,
		logger: log.With(logger.String("component", "pg_run_repository")),
	}
}

func (r *runRepository) CreateRunIfAbsent(ctx context.Context, key string, run *domain.Run) (*domain.Run, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, domain.Transport("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO runs (id, purpose, payer_id, provider_npi, status, source, input_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		run.RunID, run.Purpose, run.PayerID, nullable(run.ProviderNPI), run.Status,
		nullable(run.Source), run.InputPayload, time.UnixMilli(run.CreatedAt),
	); err != nil {
		r.logger.Error("insert run failed", logger.String("run_id", run.RunID), logger.Error(err))
		return nil, false, domain.Transport("insert run", err)
	}

	// Blocks on a concurrent uncommitted insert of the same key, then yields
	// zero rows if that transaction committed.
	tag, err := tx.Exec(ctx,
		`INSERT INTO idempotent_runs (key, run_id) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, run.RunID)
	if err != nil {
		return nil, false, domain.Transport("insert idempotency mapping", err)
	}

	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		existing, err := r.getByKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit failed", logger.String("run_id", run.RunID), logger.Error(err))
		return nil, false, domain.Transport("commit run", err)
	}

	r.logger.Info("run created", logger.String("run_id", run.RunID))
	return run, true, nil
}

func (r *runRepository) getByKey(ctx context.Context, key string) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+qualifiedRunColumns("r")+`
		FROM idempotent_runs m JOIN runs r ON r.id = m.run_id
		WHERE m.key = $1`, key)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: idempotency key", domain.ErrNotFound)
	}
	return run, err
}

func (r *runRepository) Get(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.RunNotFound(runID)
	}
	return run, err
}

func (r *runRepository) MarkRunning(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `
		UPDATE runs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING `+runColumns,
		runID, domain.RunStatusRunning, domain.RunStatusQueued))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	current, err := r.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return current, repository.ErrAlreadyTerminal
	}
	return current, nil
}

func (r *runRepository) UpdateTerminal(ctx context.Context, runID string, outcome domain.TerminalOutcome) (*domain.Run, error) {
	if err := outcome.Validate(); err != nil {
		return nil, err
	}

	var output any
	if outcome.Output != nil {
		output = outcome.Output
	}

	run, err := scanRun(r.pool.QueryRow(ctx, `
		UPDATE runs
		SET status = $2, output_payload = $3, error_code = $4, error_msg = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
		RETURNING `+runColumns,
		runID, outcome.Status, output, nullable(outcome.ErrorCode), nullable(outcome.ErrorMsg),
		domain.RunStatusRunning))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("failed to update run", logger.String("run_id", runID), logger.Error(err))
		return nil, err
	}

	current, err := r.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return current, repository.ErrAlreadyTerminal
	}
	return nil, domain.ValidateTransition(current.Status, outcome.Status)
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run                                    domain.Run
		providerNPI, source, errorCode, errMsg *string
		createdAt, updatedAt                   time.Time
	)
	err := row.Scan(&run.RunID, &run.Purpose, &run.PayerID, &providerNPI, &run.Status, &source,
		&run.InputPayload, &run.Output, &errorCode, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, domain.Transport("scan run", err)
	}

	run.ProviderNPI = deref(providerNPI)
	run.Source = deref(source)
	run.ErrorCode = deref(errorCode)
	run.ErrorMsg = deref(errMsg)
	run.CreatedAt = createdAt.UnixMilli()
	run.UpdatedAt = updatedAt.UnixMilli()
	return &run, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func qualifiedRunColumns(alias string) string {
	cols := make([]string, len(runColumnNames))
	for i, c := range runColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
