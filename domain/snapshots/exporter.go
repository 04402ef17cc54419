package snapshots

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Exporter streams memory tables to NDJSON.
type Exporter struct {
	db  bun.IDB
	log *slog.Logger
}

// NewExporter creates a new table exporter
func NewExporter(db bun.IDB, log *slog.Logger) *Exporter {
	return &Exporter{
		db:  db,
		log: log.With(logger.Scope("snapshots.exporter")),
	}
}

// ExportEpisodes writes every episode row as one JSON line, oldest
// first. The embedding column travels in pgvector text form.
func (e *Exporter) ExportEpisodes(ctx context.Context, w io.Writer) (int, error) {
	query := e.db.NewSelect().
		Table("memory.episodes").
		OrderExpr("created_at ASC, id ASC")

	return e.streamQuery(ctx, query, w, "episodes")
}

// ExportTraces writes every memory trace row as one JSON line.
func (e *Exporter) ExportTraces(ctx context.Context, w io.Writer) (int, error) {
	query := e.db.NewSelect().
		Table("memory.memory_traces").
		OrderExpr("created_at ASC, id ASC")

	return e.streamQuery(ctx, query, w, "memory_traces")
}

// streamQuery pages through a query in fixed batches and streams the
// rows as NDJSON. The stable order above keeps offset paging coherent
// while rows are being inserted behind the export.
func (e *Exporter) streamQuery(ctx context.Context, query *bun.SelectQuery, w io.Writer, tableName string) (int, error) {
	encoder := json.NewEncoder(w)
	count := 0
	const batchSize = 1000

	var offset int
	for {
		var rows []map[string]any
		err := query.
			Limit(batchSize).
			Offset(offset).
			Scan(ctx, &rows)
		if err != nil {
			e.log.Error("failed to export table",
				slog.String("table", tableName),
				slog.Int("offset", offset),
				logger.Error(err),
			)
			return count, fmt.Errorf("export %s: %w", tableName, err)
		}

		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if err := encoder.Encode(row); err != nil {
				return count, fmt.Errorf("encode %s row: %w", tableName, err)
			}
			count++
		}

		offset += batchSize

		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}
	}

	e.log.Debug("exported table",
		slog.String("table", tableName),
		slog.Int("rows", count),
	)

	return count, nil
}
