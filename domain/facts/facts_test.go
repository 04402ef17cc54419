package facts

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	assert.Equal(t, "validation_error", appErr.Code)
}

func TestQuery_Validation(t *testing.T) {
	// Validation happens before storage access, so the repository is
	// never touched.
	svc := NewService(nil, slog.Default())
	ctx := context.Background()

	tests := []struct {
		name string
		req  *QueryRequest
	}{
		{name: "missing fact_type", req: &QueryRequest{}},
		{name: "unknown fact_type", req: &QueryRequest{FactType: "favorite_color"}},
		{name: "limit too small", req: &QueryRequest{FactType: "nexus_version", Limit: -1}},
		{name: "limit too large", req: &QueryRequest{FactType: "nexus_version", Limit: 101}},
		{name: "bad order", req: &QueryRequest{FactType: "nexus_version", Order: "sideways"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Query(ctx, tt.req)
			assertValidationError(t, err)
		})
	}
}

func TestBackfill_Validation(t *testing.T) {
	svc := NewService(nil, slog.Default())

	_, err := svc.Backfill(context.Background(), &BackfillRequest{BatchSize: -1})
	assertValidationError(t, err)

	_, err = svc.Backfill(context.Background(), &BackfillRequest{BatchSize: 5000})
	assertValidationError(t, err)
}

func TestBuildResponse(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	row := &FactRow{
		ID:        id,
		Tags:      []string{"milestone"},
		CreatedAt: created,
		Facts: map[string]any{
			"nexus_version":         "2.0.0",
			"status":                "COMPLETE",
			KeyExtractionMethod:     ExtractionMethod,
			KeyExtractionConfidence: 0.9,
			KeyLastUpdated:          "2026-08-20T12:00:00Z",
		},
	}

	resp := buildResponse("nexus_version", row)

	assert.True(t, resp.Success)
	assert.Equal(t, "nexus_version", resp.FactType)
	assert.Equal(t, "2.0.0", resp.Value)
	assert.Equal(t, id, *resp.SourceEpisodeID)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.Equal(t, created, *resp.Timestamp)

	// Sibling facts ride along; telemetry and the requested fact do not.
	require.NotNil(t, resp.AdditionalContext)
	assert.Equal(t, "COMPLETE", resp.AdditionalContext["status"])
	assert.NotContains(t, resp.AdditionalContext, "nexus_version")
	assert.NotContains(t, resp.AdditionalContext, KeyExtractionMethod)
}

func TestBuildResponse_NoSiblings(t *testing.T) {
	row := &FactRow{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Facts: map[string]any{
			"status":                "COMPLETE",
			KeyExtractionConfidence: 0.3,
		},
	}

	resp := buildResponse("status", row)
	assert.Nil(t, resp.AdditionalContext)
	assert.Equal(t, 0.3, resp.Confidence)
}
