package embedding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts embedding jobs completed successfully.
	JobsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memory_embedding_jobs_processed_total",
		Help: "Embedding jobs completed successfully",
	})

	// JobsFailed counts failed job attempts, including ones that will be retried.
	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memory_embedding_jobs_failed_total",
		Help: "Embedding job attempts that failed",
	})

	// JobsDead counts jobs abandoned after exhausting their retry budget.
	JobsDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memory_embedding_jobs_dead_total",
		Help: "Embedding jobs moved to the dead state",
	})
)
