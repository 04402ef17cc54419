package temporal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

type fakeStore struct {
	mu           sync.Mutex
	windowParams []WindowParams
	windowRows   []*episodes.EpisodeRow
	windowErr    error

	refs    []episodes.TemporalRef
	refsErr error

	byIDs    [][]uuid.UUID
	byIDRows []*episodes.EpisodeRow

	addRefCalls []LinkRequest
	addRefOK    bool
	addRefErr   error

	latest    *episodes.Episode
	latestErr error

	patches []map[string]any
}

func (f *fakeStore) Window(_ context.Context, p WindowParams) ([]*episodes.EpisodeRow, error) {
	f.mu.Lock()
	f.windowParams = append(f.windowParams, p)
	f.mu.Unlock()
	if f.windowErr != nil {
		return nil, f.windowErr
	}
	return f.windowRows, nil
}

func (f *fakeStore) RefsFor(_ context.Context, _ uuid.UUID, _ string) ([]episodes.TemporalRef, error) {
	if f.refsErr != nil {
		return nil, f.refsErr
	}
	return f.refs, nil
}

func (f *fakeStore) ByIDs(_ context.Context, ids []uuid.UUID) ([]*episodes.EpisodeRow, error) {
	f.mu.Lock()
	f.byIDs = append(f.byIDs, ids)
	f.mu.Unlock()
	return f.byIDRows, nil
}

func (f *fakeStore) AddRef(_ context.Context, source, target uuid.UUID, relationship string) (bool, error) {
	f.mu.Lock()
	f.addRefCalls = append(f.addRefCalls, LinkRequest{SourceID: source, TargetID: target, Relationship: relationship})
	f.mu.Unlock()
	if f.addRefErr != nil {
		return false, f.addRefErr
	}
	return f.addRefOK, nil
}

func (f *fakeStore) LatestSample(_ context.Context, _ string) (*episodes.Episode, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeStore) PatchMetadata(_ context.Context, _ uuid.UUID, patch map[string]any) error {
	f.mu.Lock()
	f.patches = append(f.patches, patch)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) lastWindow(t *testing.T) WindowParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.windowParams)
	return f.windowParams[len(f.windowParams)-1]
}

type fakeDirectory struct {
	mu      sync.Mutex
	known   map[uuid.UUID]bool
	touched []uuid.UUID
}

func (f *fakeDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

func (f *fakeDirectory) TouchAccess(_ context.Context, ids ...uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, ids...)
}

func (f *fakeDirectory) accessCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.touched)
}

type fakeIngester struct {
	mu   sync.Mutex
	reqs []*episodes.IngestRequest
	resp *episodes.IngestResponse
	err  error
}

func (f *fakeIngester) Ingest(_ context.Context, req *episodes.IngestRequest) (*episodes.IngestResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeIngester) lastRequest(t *testing.T) *episodes.IngestRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

func newService(store *fakeStore, dir *fakeDirectory, ing *fakeIngester) *Service {
	if dir == nil {
		dir = &fakeDirectory{known: map[uuid.UUID]bool{}}
	}
	if ing == nil {
		ing = &fakeIngester{resp: &episodes.IngestResponse{
			Success:   true,
			EpisodeID: uuid.New(),
			Timestamp: time.Now().UTC(),
		}}
	}
	return NewService(store, dir, ing, slog.Default())
}

func sampleRows(n int) []*episodes.EpisodeRow {
	rows := make([]*episodes.EpisodeRow, 0, n)
	for i := 0; i < n; i++ {
		row := &episodes.EpisodeRow{}
		row.ID = uuid.New()
		row.Content = "episode"
		row.Tags = []string{"t"}
		row.CreatedAt = time.Now().Add(time.Duration(-i) * time.Hour)
		rows = append(rows, row)
	}
	return rows
}

func requireValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestBefore_RequiresTimestamp(t *testing.T) {
	svc := newService(&fakeStore{}, nil, nil)

	_, err := svc.Before(context.Background(), &WindowRequest{})
	requireValidationError(t, err)
}

func TestBefore_NewestFirstWithoutAccess(t *testing.T) {
	store := &fakeStore{windowRows: sampleRows(2)}
	dir := &fakeDirectory{known: map[uuid.UUID]bool{}}
	svc := newService(store, dir, nil)

	ts := time.Now()
	resp, err := svc.Before(context.Background(), &WindowRequest{
		Timestamp: &ts,
		Tags:      []string{"deploy"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)

	params := store.lastWindow(t)
	require.NotNil(t, params.Before)
	assert.Nil(t, params.After)
	assert.False(t, params.OldestFirst)
	assert.Equal(t, defaultLimit, params.Limit)
	assert.Equal(t, []string{"deploy"}, params.Tags)

	// Backward scans never bump access tracking.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, dir.accessCount())
}

func TestAfter_OldestFirstRecordsAccess(t *testing.T) {
	store := &fakeStore{windowRows: sampleRows(3)}
	dir := &fakeDirectory{known: map[uuid.UUID]bool{}}
	svc := newService(store, dir, nil)

	ts := time.Now().Add(-48 * time.Hour)
	resp, err := svc.After(context.Background(), &WindowRequest{Timestamp: &ts, Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)

	params := store.lastWindow(t)
	require.NotNil(t, params.After)
	assert.True(t, params.OldestFirst)
	assert.Equal(t, 25, params.Limit)

	assert.Eventually(t, func() bool {
		return dir.accessCount() == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRange_RequiresBothBounds(t *testing.T) {
	svc := newService(&fakeStore{}, nil, nil)
	now := time.Now()

	tests := []struct {
		name string
		req  *WindowRequest
	}{
		{name: "missing both", req: &WindowRequest{}},
		{name: "missing end", req: &WindowRequest{Start: &now}},
		{name: "missing start", req: &WindowRequest{End: &now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Range(context.Background(), tt.req)
			requireValidationError(t, err)
		})
	}
}

func TestRange_InclusiveWindow(t *testing.T) {
	store := &fakeStore{windowRows: sampleRows(1)}
	dir := &fakeDirectory{known: map[uuid.UUID]bool{}}
	svc := newService(store, dir, nil)

	start := time.Now().Add(-72 * time.Hour)
	end := time.Now()
	_, err := svc.Range(context.Background(), &WindowRequest{Start: &start, End: &end})
	require.NoError(t, err)

	params := store.lastWindow(t)
	require.NotNil(t, params.Start)
	require.NotNil(t, params.End)
	assert.True(t, params.OldestFirst)

	assert.Eventually(t, func() bool {
		return dir.accessCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWindow_LimitValidation(t *testing.T) {
	svc := newService(&fakeStore{}, nil, nil)
	ts := time.Now()

	for _, limit := range []int{-1, 101} {
		_, err := svc.Before(context.Background(), &WindowRequest{Timestamp: &ts, Limit: limit})
		requireValidationError(t, err)
	}
}

func TestRelated_SourceMustExist(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeDirectory{known: map[uuid.UUID]bool{}}, nil)

	_, err := svc.Related(context.Background(), &RelatedRequest{EpisodeID: uuid.New()})
	require.Error(t, err)

	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestRelated_RejectsUnknownRelationship(t *testing.T) {
	svc := newService(&fakeStore{}, nil, nil)

	_, err := svc.Related(context.Background(), &RelatedRequest{
		EpisodeID:        uuid.New(),
		RelationshipType: "inspired_by",
	})
	require.Error(t, err)

	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestRelated_DeduplicatesTargets(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	other := uuid.New()

	store := &fakeStore{
		refs: []episodes.TemporalRef{
			{EpisodeID: target, Relationship: "after"},
			{EpisodeID: target, Relationship: "causes"},
			{EpisodeID: other, Relationship: "before"},
		},
		byIDRows: sampleRows(2),
	}
	dir := &fakeDirectory{known: map[uuid.UUID]bool{source: true}}
	svc := newService(store, dir, nil)

	resp, err := svc.Related(context.Background(), &RelatedRequest{EpisodeID: source})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	require.Len(t, store.byIDs, 1)
	assert.ElementsMatch(t, []uuid.UUID{target, other}, store.byIDs[0])
}

func TestLink_Validation(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	dir := &fakeDirectory{known: map[uuid.UUID]bool{source: true, target: true}}

	tests := []struct {
		name       string
		req        *LinkRequest
		wantStatus int
	}{
		{
			name:       "missing endpoints",
			req:        &LinkRequest{Relationship: "after"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown relationship",
			req:        &LinkRequest{SourceID: source, TargetID: target, Relationship: "near"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing source episode",
			req:        &LinkRequest{SourceID: uuid.New(), TargetID: target, Relationship: "after"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing target episode",
			req:        &LinkRequest{SourceID: source, TargetID: uuid.New(), Relationship: "causes"},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(&fakeStore{addRefOK: true}, dir, nil)
			_, err := svc.Link(context.Background(), tt.req)
			require.Error(t, err)

			appErr, ok := err.(*apperror.Error)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus)
		})
	}
}

func TestLink_StoresEdge(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	store := &fakeStore{addRefOK: true}
	dir := &fakeDirectory{known: map[uuid.UUID]bool{source: true, target: true}}
	svc := newService(store, dir, nil)

	resp, err := svc.Link(context.Background(), &LinkRequest{
		SourceID:     source,
		TargetID:     target,
		Relationship: "causes",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, source, resp.SourceID)
	assert.Equal(t, target, resp.TargetID)

	require.Len(t, store.addRefCalls, 1)
	assert.Equal(t, "causes", store.addRefCalls[0].Relationship)
}

func TestConsciousness_RejectsUnknownStateType(t *testing.T) {
	svc := newService(&fakeStore{}, nil, nil)

	_, err := svc.ConsciousnessUpdate(context.Background(), &ConsciousnessRequest{
		StateType: "spiritual",
		StateData: map[string]any{"x": 1.0},
	})
	require.Error(t, err)

	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestConsciousness_FirstSampleStartsChain(t *testing.T) {
	store := &fakeStore{addRefOK: true}
	ing := &fakeIngester{resp: &episodes.IngestResponse{
		Success:   true,
		EpisodeID: uuid.New(),
		Timestamp: time.Now().UTC(),
	}}
	svc := newService(store, nil, ing)

	resp, err := svc.ConsciousnessUpdate(context.Background(), &ConsciousnessRequest{
		StateType: "emotional",
		StateData: map[string]any{"joy": 0.8, "trust": 0.7},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Nil(t, resp.LinkedToPrevious)
	assert.Equal(t, 1, resp.TemporalChainLength)
	assert.Empty(t, store.addRefCalls)

	ingested := ing.lastRequest(t)
	assert.Equal(t, ActionConsciousness, ingested.ActionType)
	assert.Equal(t, []string{TagConsciousness, "emotional"}, ingested.Tags)
	assert.Equal(t, "emotional", ingested.ActionDetails["state_type"])

	// The state vector and chain position land in metadata.
	require.Len(t, store.patches, 1)
	assert.Equal(t, 1, store.patches[0][episodes.MetaChainLength])
	assert.Contains(t, store.patches[0], episodes.MetaEmotional8D)
}

func TestConsciousness_LinksToPreviousSample(t *testing.T) {
	prev := &episodes.Episode{
		ID:       uuid.New(),
		Metadata: episodes.Metadata{episodes.MetaChainLength: 4.0},
	}
	store := &fakeStore{addRefOK: true, latest: prev}
	newID := uuid.New()
	ing := &fakeIngester{resp: &episodes.IngestResponse{
		Success:   true,
		EpisodeID: newID,
		Timestamp: time.Now().UTC(),
	}}
	svc := newService(store, nil, ing)

	resp, err := svc.ConsciousnessUpdate(context.Background(), &ConsciousnessRequest{
		StateType: "somatic",
		StateData: map[string]any{"valence": 0.4, "arousal": 0.6},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.LinkedToPrevious)
	assert.Equal(t, prev.ID, *resp.LinkedToPrevious)
	assert.Equal(t, 5, resp.TemporalChainLength)

	require.Len(t, store.addRefCalls, 1)
	assert.Equal(t, newID, store.addRefCalls[0].SourceID)
	assert.Equal(t, prev.ID, store.addRefCalls[0].TargetID)
	assert.Equal(t, "after", store.addRefCalls[0].Relationship)

	require.Len(t, store.patches, 1)
	assert.Equal(t, 5, store.patches[0][episodes.MetaChainLength])
	assert.Contains(t, store.patches[0], episodes.MetaSomatic7D)
}

func TestConsciousness_AutoLinkOptOut(t *testing.T) {
	prev := &episodes.Episode{ID: uuid.New(), Metadata: episodes.Metadata{}}
	store := &fakeStore{addRefOK: true, latest: prev}
	svc := newService(store, nil, nil)

	noLink := false
	resp, err := svc.ConsciousnessUpdate(context.Background(), &ConsciousnessRequest{
		StateType:        "emotional",
		StateData:        map[string]any{"joy": 0.5},
		AutoLinkPrevious: &noLink,
	})
	require.NoError(t, err)

	assert.Nil(t, resp.LinkedToPrevious)
	assert.Equal(t, 1, resp.TemporalChainLength)
	assert.Empty(t, store.addRefCalls)
}

func TestConsciousness_LinkFailureKeepsEpisode(t *testing.T) {
	prev := &episodes.Episode{ID: uuid.New(), Metadata: episodes.Metadata{episodes.MetaChainLength: 2.0}}
	store := &fakeStore{latest: prev, addRefErr: errors.New("connection reset")}
	svc := newService(store, nil, nil)

	resp, err := svc.ConsciousnessUpdate(context.Background(), &ConsciousnessRequest{
		StateType: "emotional",
		StateData: map[string]any{"joy": 0.9},
	})
	require.NoError(t, err)

	// The sample stands on its own when the link write fails.
	assert.True(t, resp.Success)
	assert.Nil(t, resp.LinkedToPrevious)
	assert.Equal(t, 1, resp.TemporalChainLength)
}

func TestConsciousness_ImportancePassThrough(t *testing.T) {
	store := &fakeStore{}
	ing := &fakeIngester{resp: &episodes.IngestResponse{
		Success:   true,
		EpisodeID: uuid.New(),
		Timestamp: time.Now().UTC(),
	}}
	svc := newService(store, nil, ing)

	importance := 0.85
	_, err := svc.ConsciousnessUpdate(context.Background(), &ConsciousnessRequest{
		StateType:  "emotional",
		StateData:  map[string]any{"joy": 1.0},
		Importance: &importance,
	})
	require.NoError(t, err)

	ingested := ing.lastRequest(t)
	assert.Equal(t, 0.85, ingested.ActionDetails["importance_score"])
}

func TestSampleContent(t *testing.T) {
	tests := []struct {
		name      string
		stateType string
		state     map[string]any
		expected  string
	}{
		{
			name:      "empty state",
			stateType: "emotional",
			state:     nil,
			expected:  "emotional state sample",
		},
		{
			name:      "sorted numeric dimensions",
			stateType: "emotional",
			state:     map[string]any{"trust": 0.7, "joy": 0.8},
			expected:  "emotional state sample: joy=0.8, trust=0.7",
		},
		{
			name:      "mixed value types",
			stateType: "somatic",
			state:     map[string]any{"valence": 0.4, "body_state": "relaxed"},
			expected:  "somatic state sample: body_state=relaxed, valence=0.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sampleContent(tt.stateType, tt.state))
		})
	}
}

func TestHandler_RejectsMalformedBody(t *testing.T) {
	h := NewHandler(newService(&fakeStore{}, nil, nil))
	e := echo.New()

	handlers := map[string]echo.HandlerFunc{
		"/memory/temporal/before":      h.Before,
		"/memory/temporal/related":     h.Related,
		"/memory/temporal/link":        h.Link,
		"/memory/consciousness/update": h.ConsciousnessUpdate,
	}

	for path, handler := range handlers {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler(c)
			require.Error(t, err)

			appErr, ok := err.(*apperror.Error)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
		})
	}
}
