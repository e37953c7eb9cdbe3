package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"phraseindex/internal/api"
	"phraseindex/internal/budget"
	"phraseindex/internal/captions"
	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
	"phraseindex/internal/runlock"
	"phraseindex/internal/subtitles"
	"phraseindex/internal/testsupport"
)

type staticAcquirer struct{}

func (staticAcquirer) Acquire(context.Context, string, *budget.Tracker) (captions.Result, error) {
	return captions.Result{
		Fragments: []subtitles.Fragment{
			{Start: 0, End: 2, Text: "welcome to the show"},
			{Start: 10, End: 12, Text: "today we talk about caching"},
		},
		Strategy: captions.StrategyWatchPage,
	}, nil
}

type fixture struct {
	store  *queue.Store
	server *api.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	locker, err := runlock.NewFileLocker(cfg.Paths.LockDir)
	if err != nil {
		t.Fatalf("NewFileLocker: %v", err)
	}
	pipe := pipeline.New(cfg, store, staticAcquirer{}, locker, logging.NewNop())
	server := api.New(api.Options{
		Bind:         cfg.API.Bind,
		Store:        store,
		Processor:    pipe,
		Scheduler:    pipe.Scheduler(),
		StuckTimeout: cfg.StuckTimeout(),
		Logger:       logging.NewNop(),
	})
	return &fixture{store: store, server: server}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.HealthResponse](t, rec)
	if resp.Status != "ok" || resp.SchemaVersion == 0 {
		t.Fatalf("unexpected health: %+v", resp)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAddVideo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/videos", `{"video": "https://youtu.be/dQw4w9WgXcQ", "title": "Demo"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	video := decode[api.Video](t, rec)
	if video.YouTubeID != "dQw4w9WgXcQ" || video.Status != string(queue.VideoPending) {
		t.Fatalf("unexpected video: %+v", video)
	}

	rec = f.do(t, http.MethodPost, "/api/videos", `{"video": "dQw4w9WgXcQ"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/videos", `{"video": "not a video"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", rec.Code)
	}
}

func TestProcessAndStatus(t *testing.T) {
	f := newFixture(t)
	video := testsupport.NewVideo(t, f.store, "dQw4w9WgXcQ")

	rec := f.do(t, http.MethodPost, "/api/videos/"+itoa(video.ID)+"/process", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[api.RunResult](t, rec)
	if result.Status != string(pipeline.StatusCompleted) || result.PhrasesIndexed != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rec = f.do(t, http.MethodGet, "/api/videos/"+itoa(video.ID)+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	status := decode[api.VideoStatus](t, rec)
	if status.PhraseCount != 2 || status.Status != string(queue.VideoProcessed) || status.Stuck {
		t.Fatalf("unexpected status: %+v", status)
	}

	rec = f.do(t, http.MethodGet, "/api/videos/999/status", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/videos/abc/status", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRetryVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video := testsupport.NewVideo(t, f.store, "dQw4w9WgXcQ")

	rec := f.do(t, http.MethodPost, "/api/videos/"+itoa(video.ID)+"/retry", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending video, got %d", rec.Code)
	}

	if err := f.store.FinishVideo(ctx, video.ID, queue.VideoNoSubtitles, "no captions"); err != nil {
		t.Fatalf("FinishVideo: %v", err)
	}
	rec = f.do(t, http.MethodPost, "/api/videos/"+itoa(video.ID)+"/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got, err := f.store.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != queue.VideoPending {
		t.Fatalf("expected pending after retry, got %s", got.Status)
	}
}

func TestQueueEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video := testsupport.NewVideo(t, f.store, "dQw4w9WgXcQ")
	chunks, err := f.store.EnqueueChunks(ctx, video.ID, [][]queue.Phrase{
		testsupport.Phrases(video.ID, 2),
		testsupport.Phrases(video.ID, 2),
	})
	if err != nil {
		t.Fatalf("EnqueueChunks: %v", err)
	}
	if err := f.store.FailChunk(ctx, chunks[0].ID, "boom"); err != nil {
		t.Fatalf("FailChunk: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/queue/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	status := decode[api.QueueStatusResponse](t, rec)
	if status.Overall.Total != 2 || status.Overall.Failed != 1 || len(status.Videos) != 1 {
		t.Fatalf("unexpected queue status: %+v", status)
	}

	rec = f.do(t, http.MethodPost, "/api/queue/reset?video_id="+itoa(video.ID), "")
	if rec.Code != http.StatusOK || decode[api.CountResponse](t, rec).Affected != 1 {
		t.Fatalf("unexpected reset response %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/queue/clear", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without video_id, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/queue/clear?video_id="+itoa(video.ID), "")
	if rec.Code != http.StatusOK || decode[api.CountResponse](t, rec).Affected != 2 {
		t.Fatalf("unexpected clear response %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/queue/cleanup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRecoveryEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video := testsupport.NewVideo(t, f.store, "dQw4w9WgXcQ")
	if _, err := f.store.InsertPhrases(ctx, testsupport.Phrases(video.ID, 3)); err != nil {
		t.Fatalf("InsertPhrases: %v", err)
	}
	if err := f.store.ClaimVideo(ctx, video.ID, "token"); err != nil {
		t.Fatalf("ClaimVideo: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/recovery/clear-phrases?video_id="+itoa(video.ID), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while processing, got %d", rec.Code)
	}

	time.Sleep(5 * time.Millisecond)
	rec = f.do(t, http.MethodPost, "/api/recovery/reset-stuck?timeout_minutes=0", "")
	if rec.Code != http.StatusOK || decode[api.CountResponse](t, rec).Affected != 1 {
		t.Fatalf("unexpected reset-stuck response %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/recovery/clear-phrases?video_id="+itoa(video.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[api.ClearPhrasesResponse](t, rec); resp.Phrases != 3 {
		t.Fatalf("expected 3 phrases cleared, got %+v", resp)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	f := newFixture(t)
	if err := f.server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { f.server.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + f.server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
