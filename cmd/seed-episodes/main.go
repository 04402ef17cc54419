// Command seed-episodes fills a local database with synthetic episodes so
// the search, decay and consolidation surfaces have something to work with
// during development. Inserts go through the normal table, so the enqueue
// trigger schedules embedding jobs for the running worker as a side effect.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/internal/config"
)

var actionTypes = []string{"conversation", "observation", "reflection", "decision", "action"}

var tagPool = []string{"work", "planning", "insight", "debugging", "meeting", "idea", "followup", "review"}

var verbs = []string{
	"Discussed", "Reviewed", "Sketched", "Debugged", "Benchmarked",
	"Documented", "Refactored", "Deployed", "Profiled", "Questioned",
}

var subjects = []string{
	"the retrieval ranking changes", "the queue recovery path",
	"the nightly consolidation window", "the encoder rollout plan",
	"the pgvector index sizing", "the snapshot retention policy",
	"the decay curve parameters", "the session chaining model",
	"the staging incident from last week", "the onboarding notes",
}

var outcomes = []string{
	"and agreed on the next step.", "and found the regression.",
	"without reaching a conclusion.", "and wrote down the open points.",
	"and scheduled a follow-up.", "and shipped the fix.",
	"and it held up under load.", "and the numbers looked wrong.",
}

func main() {
	var (
		count    int
		days     int
		seed     int64
		linkRate float64
	)

	flag.IntVar(&count, "count", 200, "Number of episodes to insert")
	flag.IntVar(&days, "days", 14, "Spread sessions over this many past days")
	flag.Int64Var(&seed, "seed", 1, "Random seed, same seed gives the same dataset")
	flag.Float64Var(&linkRate, "link-rate", 0.5, "Probability of a temporal link between session neighbors")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

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

	rng := rand.New(rand.NewSource(seed))
	batch := generate(rng, count, days)

	inserted := 0
	for start := 0; start < len(batch); start += 100 {
		end := start + 100
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]
		if _, err := db.NewInsert().Model(&chunk).Exec(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error inserting episodes: %v\n", err)
			os.Exit(1)
		}
		inserted += len(chunk)
		log.Info("progress", slog.Int("inserted", inserted), slog.Int("total", len(batch)))
	}

	linked, err := linkSessions(ctx, db, rng, batch, linkRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error linking episodes: %v\n", err)
		os.Exit(1)
	}

	log.Info("seed complete",
		slog.Int("episodes", inserted),
		slog.Int("temporal_links", linked),
		slog.Int("days", days),
	)
}

// generate builds count episodes grouped into sessions of about ten,
// each session clustered in time somewhere in the past days window.
func generate(rng *rand.Rand, count, days int) []episodes.Episode {
	out := make([]episodes.Episode, 0, count)

	for len(out) < count {
		sessionID := uuid.NewString()
		sessionLen := 5 + rng.Intn(10)
		if remaining := count - len(out); sessionLen > remaining {
			sessionLen = remaining
		}

		ageHours := rng.Float64() * float64(days) * 24
		at := time.Now().UTC().Add(-time.Duration(ageHours * float64(time.Hour)))

		for i := 0; i < sessionLen; i++ {
			at = at.Add(time.Duration(1+rng.Intn(5)) * time.Minute)
			out = append(out, makeEpisode(rng, sessionID, at))
		}
	}

	return out
}

func makeEpisode(rng *rand.Rand, sessionID string, at time.Time) episodes.Episode {
	content := fmt.Sprintf("%s %s %s",
		verbs[rng.Intn(len(verbs))],
		subjects[rng.Intn(len(subjects))],
		outcomes[rng.Intn(len(outcomes))],
	)

	salience := 0.2 + rng.Float64()*0.6
	if rng.Float64() < 0.05 {
		salience = 0.9 + rng.Float64()*0.1
	}

	tags := make([]string, 0, 3)
	for _, t := range rng.Perm(len(tagPool))[:1+rng.Intn(3)] {
		tags = append(tags, tagPool[t])
	}

	meta := episodes.Metadata{
		episodes.MetaActionType:    actionTypes[rng.Intn(len(actionTypes))],
		episodes.MetaSessionID:     sessionID,
		episodes.MetaSalienceScore: salience,
		episodes.MetaEmotional8D: map[string]float64{
			"joy":          rng.Float64(),
			"trust":        rng.Float64(),
			"fear":         rng.Float64() * 0.3,
			"surprise":     rng.Float64() * 0.5,
			"sadness":      rng.Float64() * 0.3,
			"disgust":      rng.Float64() * 0.2,
			"anger":        rng.Float64() * 0.2,
			"anticipation": rng.Float64(),
		},
		episodes.MetaSomatic7D: map[string]float64{
			"valence": rng.Float64()*2 - 1,
			"arousal": rng.Float64(),
		},
	}

	return episodes.Episode{
		ID:              uuid.New(),
		Content:         content,
		ImportanceScore: 0.3 + rng.Float64()*0.6,
		Tags:            tags,
		Metadata:        meta,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

// linkSessions adds "after" references between neighboring episodes of the
// same session through the add_temporal_ref procedure, the same path the
// temporal API uses.
func linkSessions(ctx context.Context, db *bun.DB, rng *rand.Rand, batch []episodes.Episode, linkRate float64) (int, error) {
	linked := 0
	for i := 1; i < len(batch); i++ {
		prev, cur := batch[i-1], batch[i]
		if prev.Metadata.SessionID() != cur.Metadata.SessionID() {
			continue
		}
		if rng.Float64() >= linkRate {
			continue
		}

		var ok bool
		err := db.QueryRowContext(ctx,
			`SELECT memory.add_temporal_ref(?, ?, 'after')`,
			cur.ID, prev.ID,
		).Scan(&ok)
		if err != nil {
			return linked, fmt.Errorf("add temporal ref: %w", err)
		}
		if ok {
			linked++
		}
	}
	return linked, nil
}
