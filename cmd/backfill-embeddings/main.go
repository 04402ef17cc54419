// Command backfill-embeddings schedules encoding work for episodes that
// have no embedding, or whose embedding was produced by a different
// encoder version. It only writes queue rows; the server's embedding
// worker does the actual encoding.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/internal/jobs"
)

// episodeRow is one episode due for (re)encoding.
type episodeRow struct {
	ID       uuid.UUID
	Priority int
}

// priorityExpr mirrors the insert trigger: metadata.action_details.priority
// when numeric, 0 otherwise.
const priorityExpr = `COALESCE(
	CASE WHEN jsonb_typeof(metadata -> 'action_details' -> 'priority') = 'number'
	     THEN trunc((metadata -> 'action_details' ->> 'priority')::numeric)::int
	END, 0)`

func main() {
	var (
		batchSize      int
		dryRun         bool
		encoderVersion string
	)

	flag.IntVar(&batchSize, "batch-size", 500, "Episodes fetched per batch")
	flag.BoolVar(&dryRun, "dry-run", false, "Report what would be requeued without writing")
	flag.StringVar(&encoderVersion, "encoder-version", "", "Also requeue episodes whose embedding_version differs from this value")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if dryRun {
		log.Info("dry run enabled, no jobs will be written")
	}

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	sqldb, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	total, err := countDue(ctx, db, encoderVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error counting episodes: %v\n", err)
		os.Exit(1)
	}
	if total == 0 {
		log.Info("every episode is encoded, nothing to do")
		return
	}
	log.Info("starting backfill", slog.Int64("total", total), slog.Int("batch_size", batchSize))

	queue := jobs.NewQueue(db, jobs.DefaultQueueConfig("queue.embedding_jobs", "episode_id"), log)

	var scanned, requeued, failed int64
	cursor := uuid.Nil

	for {
		batch, err := fetchBatch(ctx, db, cursor, batchSize, encoderVersion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching batch: %v\n", err)
			os.Exit(1)
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			scanned++
			if dryRun {
				continue
			}

			ok, err := queue.Requeue(ctx, row.ID, row.Priority)
			if err != nil {
				failed++
				log.Warn("requeue failed",
					slog.String("episode_id", row.ID.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ok {
				requeued++
			}
		}

		cursor = batch[len(batch)-1].ID
		log.Info("progress",
			slog.Int64("scanned", scanned),
			slog.Int64("total", total),
			slog.Int64("requeued", requeued),
		)
	}

	if dryRun {
		log.Info("dry run complete", slog.Int64("candidates", scanned))
		return
	}

	log.Info("backfill complete",
		slog.Int64("scanned", scanned),
		slog.Int64("requeued", requeued),
		slog.Int64("errors", failed),
	)
}

// countDue returns the number of episodes that need (re)encoding.
func countDue(ctx context.Context, db *bun.DB, encoderVersion string) (int64, error) {
	query := `SELECT COUNT(*) FROM memory.episodes WHERE embedding IS NULL`
	args := []any{}

	if encoderVersion != "" {
		query = `SELECT COUNT(*) FROM memory.episodes
			WHERE embedding IS NULL OR embedding_version IS DISTINCT FROM ?`
		args = append(args, encoderVersion)
	}

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return count, nil
}

// fetchBatch pages through due episodes by id so already-visited rows are
// never fetched twice, whether or not the requeue changed them.
func fetchBatch(ctx context.Context, db *bun.DB, cursor uuid.UUID, limit int, encoderVersion string) ([]episodeRow, error) {
	query := `
		SELECT id, ` + priorityExpr + ` AS priority
		FROM memory.episodes
		WHERE id > ? AND embedding IS NULL
		ORDER BY id
		LIMIT ?`
	args := []any{cursor, limit}

	if encoderVersion != "" {
		query = `
		SELECT id, ` + priorityExpr + ` AS priority
		FROM memory.episodes
		WHERE id > ? AND (embedding IS NULL OR embedding_version IS DISTINCT FROM ?)
		ORDER BY id
		LIMIT ?`
		args = []any{cursor, encoderVersion, limit}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch query: %w", err)
	}
	defer rows.Close()

	var result []episodeRow
	for rows.Next() {
		var r episodeRow
		if err := rows.Scan(&r.ID, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}
