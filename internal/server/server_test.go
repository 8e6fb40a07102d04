package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skyfeed/internal/ingest"
	"skyfeed/internal/model"
	"skyfeed/internal/store"
	"skyfeed/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "trigger-secret"

type StubIngestor struct {
	Calls int
}

func (s *StubIngestor) Run(ctx context.Context) (ingest.Report, error) {
	s.Calls++
	return ingest.Report{Sources: 2, Items: 5, Inserted: 3}, nil
}

type StubDrainer struct {
	Calls    int
	LastMax  int
	FailWith error
}

func (s *StubDrainer) Drain(ctx context.Context, maxBatch int) (worker.Result, error) {
	s.Calls++
	s.LastMax = maxBatch
	if s.FailWith != nil {
		return worker.Result{}, s.FailWith
	}
	return worker.Result{Claimed: 2, Done: 2}, nil
}

type StubPublisher struct {
	Err error
}

func (s *StubPublisher) Publish(ctx context.Context, draftID string) (*model.Article, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return &model.Article{ID: "article-1", Slug: "my-title"}, nil
}

func newTestServer(t *testing.T) (*Server, *StubIngestor, *StubDrainer, *StubPublisher, store.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st, err := store.NewHybridStore(mr.Addr(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	ing := &StubIngestor{}
	dr := &StubDrainer{}
	pub := &StubPublisher{}
	srv := NewServer(st, ing, dr, pub, testSecret, 5, zap.NewNop())
	return srv, ing, dr, pub, st
}

func doRequest(srv *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestTriggers_RejectMissingSecret(t *testing.T) {
	srv, ing, dr, _, _ := newTestServer(t)

	for _, path := range []string{"/jobs/fetch", "/jobs/drain"} {
		rec := doRequest(srv, http.MethodPost, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = doRequest(srv, http.MethodPost, path, "wrong-secret")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	// Rejected before any work began.
	assert.Zero(t, ing.Calls)
	assert.Zero(t, dr.Calls)
}

func TestTriggers_AcceptTokenQueryParam(t *testing.T) {
	srv, ing, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/jobs/fetch?token="+testSecret, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ing.Calls)
}

func TestFetch_ReturnsReport(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/jobs/fetch", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var report ingest.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Inserted)
}

func TestDrain_PassesBatchSize(t *testing.T) {
	srv, _, dr, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/jobs/drain?max=2", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, dr.LastMax)

	// Default batch size applies when max is absent.
	rec = doRequest(srv, http.MethodPost, "/jobs/drain", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, dr.LastMax)

	rec = doRequest(srv, http.MethodPost, "/jobs/drain?max=nope", testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrain_FailurePayload(t *testing.T) {
	srv, _, dr, _, _ := newTestServer(t)
	dr.FailWith = fmt.Errorf("redis unreachable")

	rec := doRequest(srv, http.MethodPost, "/jobs/drain", testSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload["error"], "redis unreachable")
}

func TestPublish_Responses(t *testing.T) {
	srv, _, _, pub, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/drafts/d1/publish", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "article-1", payload["articleId"])
	assert.Equal(t, "my-title", payload["slug"])

	pub.Err = fmt.Errorf("load draft d1: %w", store.ErrNotFound)
	rec = doRequest(srv, http.MethodPost, "/drafts/d1/publish", testSecret)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	pub.Err = fmt.Errorf("publish draft d1: %w", store.ErrAlreadyPublished)
	rec = doRequest(srv, http.MethodPost, "/drafts/d1/publish", testSecret)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequeue_OnlyErroredEntries(t *testing.T) {
	srv, _, _, _, st := newTestServer(t)
	ctx := context.Background()

	entry := model.NewQueueEntry("aviation", model.CandidateItem{Title: "t", Link: "https://x.com/r"})
	_, err := st.InsertEntry(ctx, entry)
	require.NoError(t, err)

	// Pending entries cannot be requeued.
	rec := doRequest(srv, http.MethodPost, "/queue/"+entry.Key+"/requeue", testSecret)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err = st.ClaimEntry(ctx, entry.Key, time.Now())
	require.NoError(t, err)
	require.NoError(t, st.FailEntry(ctx, entry.Key, "boom", time.Now()))

	rec = doRequest(srv, http.MethodPost, "/queue/"+entry.Key+"/requeue", testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/queue/unknown-key/requeue", testSecret)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz_Unauthenticated(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListQueue(t *testing.T) {
	srv, _, _, _, st := newTestServer(t)

	entry := model.NewQueueEntry("aviation", model.CandidateItem{Title: "Visible", Link: "https://x.com/v"})
	_, err := st.InsertEntry(context.Background(), entry)
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/queue", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Entries []model.QueueEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, "Visible", payload.Entries[0].Title)
}
