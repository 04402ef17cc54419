package jobs

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{
			name: "short message",
			msg:  "short error",
			want: "short error",
		},
		{
			name: "exactly 500 characters",
			msg:  strings.Repeat("a", 500),
			want: strings.Repeat("a", 500),
		},
		{
			name: "501 characters truncated to 500",
			msg:  strings.Repeat("a", 501),
			want: strings.Repeat("a", 500),
		},
		{
			name: "long message truncated",
			msg:  strings.Repeat("b", 1000),
			want: strings.Repeat("b", 500),
		},
		{
			name: "empty string",
			msg:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateError(tt.msg)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 500)
		})
	}
}

func TestDefaultQueueConfig(t *testing.T) {
	config := DefaultQueueConfig("queue.embedding_jobs", "episode_id")

	assert.Equal(t, "queue.embedding_jobs", config.TableName)
	assert.Equal(t, "episode_id", config.EntityIDColumn)
	assert.Equal(t, 5, config.MaxRetries)
	assert.Equal(t, 10, config.BatchSize)
}

func TestJobStateConstants(t *testing.T) {
	// Test that state constants have expected values
	assert.Equal(t, JobState("pending"), StatePending)
	assert.Equal(t, JobState("processing"), StateProcessing)
	assert.Equal(t, JobState("done"), StateDone)
	assert.Equal(t, JobState("dead"), StateDead)
}

func TestStates_LifecycleOrder(t *testing.T) {
	require.Len(t, States, 4)
	assert.Equal(t, StatePending, States[0])
	assert.Equal(t, StateProcessing, States[1])
	assert.Equal(t, StateDone, States[2])
	assert.Equal(t, StateDead, States[3])
}

func TestQueueConfig(t *testing.T) {
	t.Run("custom config values", func(t *testing.T) {
		config := QueueConfig{
			TableName:      "custom.jobs",
			EntityIDColumn: "custom_id",
			MaxRetries:     3,
			BatchSize:      20,
		}

		assert.Equal(t, "custom.jobs", config.TableName)
		assert.Equal(t, "custom_id", config.EntityIDColumn)
		assert.Equal(t, 3, config.MaxRetries)
		assert.Equal(t, 20, config.BatchSize)
	})

	t.Run("zero values for optional fields", func(t *testing.T) {
		config := QueueConfig{
			TableName:      "queue.jobs",
			EntityIDColumn: "id",
			// Leave other fields at zero values
		}

		assert.Equal(t, "queue.jobs", config.TableName)
		assert.Equal(t, "id", config.EntityIDColumn)
		assert.Equal(t, 0, config.MaxRetries)
		assert.Equal(t, 0, config.BatchSize)
	})

	t.Run("NewQueue applies defaults to zero fields", func(t *testing.T) {
		q := NewQueue(nil, QueueConfig{TableName: "queue.jobs", EntityIDColumn: "id"}, testLogger())

		assert.Equal(t, 5, q.config.MaxRetries)
		assert.Equal(t, 10, q.config.BatchSize)
	})
}

func TestClaimedJob(t *testing.T) {
	id := uuid.New()
	entity := uuid.New()
	job := ClaimedJob{
		ID:         id,
		EntityID:   entity,
		RetryCount: 2,
	}

	assert.Equal(t, id, job.ID)
	assert.Equal(t, entity, job.EntityID)
	assert.Equal(t, 2, job.RetryCount)
}

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig("test-worker")

	assert.Equal(t, "test-worker", config.Name)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.Equal(t, 10, config.BatchSize)
	assert.Equal(t, 10, config.StaleThresholdMinutes)
	assert.True(t, config.RecoverStaleOnStart)
}

func TestDefaultWorkerConfig_DifferentNames(t *testing.T) {
	tests := []struct {
		name string
	}{
		{"embedding-worker"},
		{"snapshot-worker"},
		{""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultWorkerConfig(tt.name)
			assert.Equal(t, tt.name, config.Name)
			// Other defaults should be the same
			assert.Equal(t, 5*time.Second, config.PollInterval)
			assert.Equal(t, 10, config.BatchSize)
		})
	}
}

func TestWorkerConfig_CustomValues(t *testing.T) {
	config := WorkerConfig{
		Name:                  "custom-worker",
		PollInterval:          10 * time.Second,
		BatchSize:             20,
		StaleThresholdMinutes: 30,
		RecoverStaleOnStart:   false,
	}

	assert.Equal(t, "custom-worker", config.Name)
	assert.Equal(t, 10*time.Second, config.PollInterval)
	assert.Equal(t, 20, config.BatchSize)
	assert.Equal(t, 30, config.StaleThresholdMinutes)
	assert.False(t, config.RecoverStaleOnStart)
}

func TestWorkerMetricsStruct(t *testing.T) {
	t.Run("zero values", func(t *testing.T) {
		metrics := WorkerMetrics{}

		assert.Zero(t, metrics.Processed)
		assert.Zero(t, metrics.Succeeded)
		assert.Zero(t, metrics.Failed)
	})

	t.Run("custom values", func(t *testing.T) {
		metrics := WorkerMetrics{
			Processed: 100,
			Succeeded: 90,
			Failed:    10,
		}

		assert.Equal(t, int64(100), metrics.Processed)
		assert.Equal(t, int64(90), metrics.Succeeded)
		assert.Equal(t, int64(10), metrics.Failed)
	})
}

func TestWorker_IncrementProcessed(t *testing.T) {
	w := &Worker{}

	// Initial state
	metrics := w.Metrics()
	assert.Zero(t, metrics.Processed)
	assert.Zero(t, metrics.Succeeded)
	assert.Zero(t, metrics.Failed)

	// Increment processed
	w.IncrementProcessed()
	metrics = w.Metrics()
	assert.Equal(t, int64(1), metrics.Processed)
	assert.Zero(t, metrics.Succeeded)
	assert.Zero(t, metrics.Failed)

	// Increment again
	w.IncrementProcessed()
	w.IncrementProcessed()
	metrics = w.Metrics()
	assert.Equal(t, int64(3), metrics.Processed)
	assert.Zero(t, metrics.Succeeded)
	assert.Zero(t, metrics.Failed)
}

func TestWorker_IncrementSuccess(t *testing.T) {
	w := &Worker{}

	// Increment success (should increment both processed and succeeded)
	w.IncrementSuccess()
	metrics := w.Metrics()
	assert.Equal(t, int64(1), metrics.Processed)
	assert.Equal(t, int64(1), metrics.Succeeded)
	assert.Zero(t, metrics.Failed)

	// Increment more
	w.IncrementSuccess()
	w.IncrementSuccess()
	metrics = w.Metrics()
	assert.Equal(t, int64(3), metrics.Processed)
	assert.Equal(t, int64(3), metrics.Succeeded)
	assert.Zero(t, metrics.Failed)
}

func TestWorker_IncrementFailure(t *testing.T) {
	w := &Worker{}

	// Increment failure (should increment both processed and failed)
	w.IncrementFailure()
	metrics := w.Metrics()
	assert.Equal(t, int64(1), metrics.Processed)
	assert.Zero(t, metrics.Succeeded)
	assert.Equal(t, int64(1), metrics.Failed)

	// Increment more
	w.IncrementFailure()
	metrics = w.Metrics()
	assert.Equal(t, int64(2), metrics.Processed)
	assert.Zero(t, metrics.Succeeded)
	assert.Equal(t, int64(2), metrics.Failed)
}

func TestWorker_MixedIncrements(t *testing.T) {
	w := &Worker{}

	// Mix of all increment types
	w.IncrementSuccess()
	w.IncrementSuccess()
	w.IncrementFailure()
	w.IncrementProcessed() // processed but not success or failure

	metrics := w.Metrics()
	assert.Equal(t, int64(4), metrics.Processed)
	assert.Equal(t, int64(2), metrics.Succeeded)
	assert.Equal(t, int64(1), metrics.Failed)
}

func TestWorker_IsRunning(t *testing.T) {
	t.Run("initial state is not running", func(t *testing.T) {
		w := &Worker{}
		assert.False(t, w.IsRunning())
	})

	t.Run("running after setting flag", func(t *testing.T) {
		w := &Worker{running: true}
		assert.True(t, w.IsRunning())
	})

	t.Run("not running after clearing flag", func(t *testing.T) {
		w := &Worker{running: true}
		assert.True(t, w.IsRunning())

		w.mu.Lock()
		w.running = false
		w.mu.Unlock()

		assert.False(t, w.IsRunning())
	})
}

func TestWorker_StartStop(t *testing.T) {
	polled := make(chan struct{}, 1)
	w := NewWorker(
		WorkerConfig{Name: "test", PollInterval: 5 * time.Millisecond},
		testLogger(),
		func(ctx context.Context) error {
			select {
			case polled <- struct{}{}:
			default:
			}
			return nil
		},
	)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	// Start is idempotent
	require.NoError(t, w.Start(ctx))

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never polled")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())

	// Stop is idempotent
	require.NoError(t, w.Stop(stopCtx))
}

func TestWorker_Metrics_Concurrent(t *testing.T) {
	w := &Worker{}

	// Run concurrent increments
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				w.IncrementSuccess()
				w.IncrementFailure()
				_ = w.Metrics() // read while writing
			}
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	metrics := w.Metrics()
	// 10 goroutines * 100 iterations * 2 increments (success + failure)
	assert.Equal(t, int64(2000), metrics.Processed)
	assert.Equal(t, int64(1000), metrics.Succeeded)
	assert.Equal(t, int64(1000), metrics.Failed)
}
