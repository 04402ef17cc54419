// Package jobs provides a PostgreSQL-backed job queue.
//
// Jobs move pending → processing → done. Failures send a job back to
// pending until its retry budget is spent, then park it in dead with the
// last error preserved. Claims use FOR UPDATE SKIP LOCKED so concurrent
// workers never double-process a job, and the retry counter is bumped at
// claim time so a crashed worker still consumes budget.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JobState represents the state of a job
type JobState string

const (
	StatePending    JobState = "pending"
	StateProcessing JobState = "processing"
	StateDone       JobState = "done"
	StateDead       JobState = "dead"
)

// States lists every queue state in lifecycle order.
var States = []JobState{StatePending, StateProcessing, StateDone, StateDead}

// QueueConfig contains configuration for a job queue
type QueueConfig struct {
	// TableName is the fully qualified table name (e.g., "queue.embedding_jobs")
	TableName string
	// EntityIDColumn is the column holding the owning entity ID (e.g., "episode_id")
	EntityIDColumn string
	// MaxRetries is the attempt budget before a job goes dead (default: 5)
	MaxRetries int
	// BatchSize is the default number of jobs to claim at once (default: 10)
	BatchSize int
}

// DefaultQueueConfig returns a QueueConfig with sensible defaults
func DefaultQueueConfig(tableName, entityIDColumn string) QueueConfig {
	return QueueConfig{
		TableName:      tableName,
		EntityIDColumn: entityIDColumn,
		MaxRetries:     5,
		BatchSize:      10,
	}
}

// Queue provides job queue operations over a single table.
type Queue struct {
	db     bun.IDB
	config QueueConfig
	log    *slog.Logger
}

// NewQueue creates a new job queue with the given configuration
func NewQueue(db bun.IDB, config QueueConfig, log *slog.Logger) *Queue {
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	return &Queue{
		db:     db,
		config: config,
		log:    log,
	}
}

// ClaimedJob is one job handed to a worker.
type ClaimedJob struct {
	ID         uuid.UUID
	EntityID   uuid.UUID
	RetryCount int
}

// Claim atomically moves up to batchSize pending jobs to processing and
// returns them. Highest priority first, oldest first within a priority.
//
// SQL pattern:
//
//	WITH cte AS (
//	  SELECT id FROM table
//	  WHERE state = 'pending'
//	  ORDER BY priority DESC, enqueued_at ASC
//	  FOR UPDATE SKIP LOCKED
//	  LIMIT $1
//	)
//	UPDATE table SET state='processing', retry_count=retry_count+1, started_at=now()
//	FROM cte WHERE table.id = cte.id
//	RETURNING id, entity_id, retry_count
func (q *Queue) Claim(ctx context.Context, batchSize int) ([]ClaimedJob, error) {
	if batchSize <= 0 {
		batchSize = q.config.BatchSize
	}

	// Strategic SQL that cannot be expressed with Bun's query builder
	query := fmt.Sprintf(`
		WITH cte AS (
			SELECT id FROM %s
			WHERE state = 'pending'
			ORDER BY priority DESC, enqueued_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT ?
		)
		UPDATE %s j
		SET state = 'processing', retry_count = j.retry_count + 1, started_at = now()
		FROM cte WHERE j.id = cte.id
		RETURNING j.id, j.%s, j.retry_count`,
		q.config.TableName, q.config.TableName, q.config.EntityIDColumn)

	rows, err := q.db.QueryContext(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim failed: %w", err)
	}
	defer rows.Close()

	var jobs []ClaimedJob
	for rows.Next() {
		var job ClaimedJob
		if err := rows.Scan(&job.ID, &job.EntityID, &job.RetryCount); err != nil {
			return nil, fmt.Errorf("claim scan failed: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim rows failed: %w", err)
	}

	return jobs, nil
}

// Enqueue inserts a pending job for the given entity. Duplicate entities
// are ignored, so enqueueing is idempotent per entity. Returns true when
// a new job was created.
func (q *Queue) Enqueue(ctx context.Context, entityID uuid.UUID, priority int) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, priority)
		VALUES (?, ?)
		ON CONFLICT (%s) DO NOTHING`,
		q.config.TableName, q.config.EntityIDColumn, q.config.EntityIDColumn)

	result, err := q.db.ExecContext(ctx, query, entityID, priority)
	if err != nil {
		return false, fmt.Errorf("enqueue failed: %w", err)
	}
	count, _ := result.RowsAffected()
	return count > 0, nil
}

// Requeue schedules an entity for reprocessing. A missing job row is
// inserted as pending; a done or dead row is reset to pending with a
// fresh retry budget. Jobs still pending or processing are left alone.
// Returns true when the entity ended up scheduled.
func (q *Queue) Requeue(ctx context.Context, entityID uuid.UUID, priority int) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s AS j (%s, priority)
		VALUES (?, ?)
		ON CONFLICT (%s) DO UPDATE
		SET state = 'pending', priority = EXCLUDED.priority, retry_count = 0,
		    last_error = NULL, enqueued_at = now(), started_at = NULL, processed_at = NULL
		WHERE j.state IN ('done', 'dead')`,
		q.config.TableName, q.config.EntityIDColumn, q.config.EntityIDColumn)

	result, err := q.db.ExecContext(ctx, query, entityID, priority)
	if err != nil {
		return false, fmt.Errorf("requeue failed: %w", err)
	}
	count, _ := result.RowsAffected()
	return count > 0, nil
}

// MarkDone marks a job as successfully processed.
func (q *Queue) MarkDone(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'done', processed_at = now()
		WHERE id = ?`,
		q.config.TableName)

	if _, err := q.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark done failed: %w", err)
	}
	return nil
}

// MarkFailed records a failure. The job returns to pending while retry
// budget remains; once retryCount reaches MaxRetries it goes dead and
// stays out of every future claim.
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	if retryCount >= q.config.MaxRetries {
		query := fmt.Sprintf(`
			UPDATE %s
			SET state = 'dead', last_error = ?
			WHERE id = ?`,
			q.config.TableName)

		if _, err := q.db.ExecContext(ctx, query, truncateError(errMsg), id); err != nil {
			return fmt.Errorf("mark dead failed: %w", err)
		}

		q.log.Warn("job dead after exhausting retries",
			slog.String("job_id", id.String()),
			slog.Int("retries", retryCount),
			slog.String("error", errMsg))
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'pending', last_error = ?, started_at = NULL
		WHERE id = ?`,
		q.config.TableName)

	if _, err := q.db.ExecContext(ctx, query, truncateError(errMsg), id); err != nil {
		return fmt.Errorf("mark failed (retry) failed: %w", err)
	}

	q.log.Debug("job returned to pending",
		slog.String("job_id", id.String()),
		slog.Int("retry_count", retryCount))
	return nil
}

// RecoverStale reverts jobs stuck in processing back to pending. This
// covers crashed or restarted workers whose claims never resolved.
// Returns the number of jobs recovered.
func (q *Queue) RecoverStale(ctx context.Context, staleThresholdMinutes int) (int, error) {
	if staleThresholdMinutes <= 0 {
		staleThresholdMinutes = 10
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'pending', started_at = NULL
		WHERE state = 'processing'
			AND started_at < now() - (? || ' minutes')::interval`,
		q.config.TableName)

	result, err := q.db.ExecContext(ctx, query, fmt.Sprintf("%d", staleThresholdMinutes))
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs failed: %w", err)
	}

	count, _ := result.RowsAffected()
	if count > 0 {
		q.log.Warn("recovered stale jobs",
			slog.Int64("count", count),
			slog.Int("threshold_minutes", staleThresholdMinutes))
	}

	return int(count), nil
}

// Stats returns the per-state job counts. Every state is present in the
// result, zero included.
func (q *Queue) Stats(ctx context.Context) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT state, COUNT(*) FROM %s GROUP BY state`, q.config.TableName)

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queue stats failed: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64, len(States))
	for _, state := range States {
		stats[string(state)] = 0
	}
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("queue stats scan failed: %w", err)
		}
		stats[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue stats rows failed: %w", err)
	}

	return stats, nil
}

// PendingDepth returns the number of jobs waiting to be claimed.
func (q *Queue) PendingDepth(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE state = 'pending'`, q.config.TableName)

	var depth int64
	if err := q.db.QueryRowContext(ctx, query).Scan(&depth); err != nil {
		return 0, fmt.Errorf("queue depth failed: %w", err)
	}
	return depth, nil
}

// GetJobByID retrieves a job by its ID into dest. Returns sql.ErrNoRows
// untouched so callers can distinguish absence.
func (q *Queue) GetJobByID(ctx context.Context, id uuid.UUID, dest interface{}) error {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, q.config.TableName)
	err := q.db.NewRaw(query, id).Scan(ctx, dest)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// truncateError truncates an error message to 500 characters
func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
