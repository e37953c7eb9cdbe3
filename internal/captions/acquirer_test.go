package captions_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"

	"phraseindex/internal/budget"
	"phraseindex/internal/captions"
	"phraseindex/internal/logging"
	"phraseindex/internal/services"
	"phraseindex/internal/testsupport"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:03.000
hello there

00:00:03.500 --> 00:00:05.000
general kenobi
`

type captionServer struct {
	listStatus      int
	listBody        string
	downloadStatus  int
	watchStatus     int
	watchBody       string
	timedTextStatus int
	timedTextBody   string
	timedTextByLang map[string]string
	hits            map[string]int
}

func (c *captionServer) handler(t *testing.T, baseURL *string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/captions", func(w http.ResponseWriter, r *http.Request) {
		c.hits["list"]++
		if r.URL.Query().Get("key") == "" {
			t.Errorf("expected api key on listing request")
		}
		writeOr(w, c.listStatus, c.listBody)
	})
	mux.HandleFunc("/captions/", func(w http.ResponseWriter, r *http.Request) {
		c.hits["download:"+r.URL.Path]++
		if r.URL.Query().Get("tfmt") != "vtt" {
			t.Errorf("expected tfmt=vtt, got %q", r.URL.RawQuery)
		}
		writeOr(w, c.downloadStatus, sampleVTT)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		c.hits["watch"]++
		body := c.watchBody
		if body == "" {
			body = watchPage(*baseURL + "/track?lang=en")
		}
		writeOr(w, c.watchStatus, body)
	})
	mux.HandleFunc("/track", func(w http.ResponseWriter, r *http.Request) {
		c.hits["track"]++
		if r.URL.Query().Get("fmt") != "vtt" {
			t.Errorf("expected fmt=vtt on track url, got %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, sampleVTT)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		c.hits["timedtext"]++
		body := c.timedTextBody
		if byLang, ok := c.timedTextByLang[r.URL.Query().Get("lang")]; ok {
			body = byLang
		}
		writeOr(w, c.timedTextStatus, body)
	})
	return mux
}

func writeOr(w http.ResponseWriter, status int, body string) {
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	fmt.Fprint(w, body)
}

func watchPage(trackURL string) string {
	return `<html><head><script>var other = {"a": 1};</script>
<script>var ytInitialPlayerResponse = {"videoDetails":{"title":"brace } inside \"quoted\" {"},` +
		`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
		`{"baseUrl":"` + trackURL + `&kind=asr&lang=fr","languageCode":"fr","kind":"asr","name":{"simpleText":"French"}},` +
		`{"baseUrl":"` + trackURL + `","languageCode":"en","name":{"simpleText":"English"}}]}}};var meta = {};</script>
</head><body></body></html>`
}

func newAcquirer(t *testing.T, srv *captionServer, opts ...captions.Option) (*captions.Acquirer, func()) {
	t.Helper()
	if srv.hits == nil {
		srv.hits = make(map[string]int)
	}
	var baseURL string
	server := httptest.NewServer(srv.handler(t, &baseURL))
	baseURL = server.URL
	cfg := testsupport.NewConfig(t, testsupport.WithCaptionServer(server.URL))
	return captions.New(cfg, logging.NewNop(), opts...), server.Close
}

func TestAcquirePrefersOfficialAPI(t *testing.T) {
	srv := &captionServer{
		listBody: `{"items":[
			{"id":"auto","snippet":{"language":"en","trackKind":"asr","name":""}},
			{"id":"manual","snippet":{"language":"en","trackKind":"standard","name":"English"}}]}`,
	}
	acq, closeFn := newAcquirer(t, srv)
	defer closeFn()

	result, err := acq.Acquire(context.Background(), "vid1", nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if result.Strategy != captions.StrategyOfficialAPI {
		t.Fatalf("expected official_api, got %s", result.Strategy)
	}
	if len(result.Fragments) != 2 || result.Fragments[1].Text != "general kenobi" {
		t.Fatalf("unexpected fragments: %#v", result.Fragments)
	}
	if srv.hits["download:/captions/manual"] != 1 {
		t.Fatalf("expected manual track download, hits=%v", srv.hits)
	}
	if srv.hits["watch"] != 0 {
		t.Fatal("expected later strategies to be skipped")
	}
}

func TestAcquireFallsBackToWatchPage(t *testing.T) {
	srv := &captionServer{listStatus: http.StatusForbidden}
	acq, closeFn := newAcquirer(t, srv)
	defer closeFn()

	result, err := acq.Acquire(context.Background(), "vid2", nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if result.Strategy != captions.StrategyWatchPage || result.Language != "en" {
		t.Fatalf("expected english watch page track, got %s/%s", result.Strategy, result.Language)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Failure != "quota" {
		t.Fatalf("expected one quota attempt, got %#v", result.Attempts)
	}
}

func TestAcquireUsesTimedTextLast(t *testing.T) {
	srv := &captionServer{
		listStatus:    http.StatusNotFound,
		watchBody:     "<html><body>no player here</body></html>",
		timedTextBody: sampleVTT,
	}
	acq, closeFn := newAcquirer(t, srv)
	defer closeFn()

	result, err := acq.Acquire(context.Background(), "vid3", nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if result.Strategy != captions.StrategyTimedText || result.Language != "en" {
		t.Fatalf("unexpected result: %s/%s", result.Strategy, result.Language)
	}
}

func TestAcquireTimedTextSkipsHeaderOnlyTrack(t *testing.T) {
	srv := &captionServer{
		listStatus:      http.StatusNotFound,
		watchBody:       "<html><body>no player here</body></html>",
		timedTextBody:   sampleVTT,
		timedTextByLang: map[string]string{"en": "WEBVTT\nKind: captions\nLanguage: en\n"},
	}
	acq, closeFn := newAcquirer(t, srv)
	defer closeFn()

	result, err := acq.Acquire(context.Background(), "vid3b", nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if result.Strategy != captions.StrategyTimedText || result.Language != "en-US" {
		t.Fatalf("expected en-US timed text track, got %s/%s", result.Strategy, result.Language)
	}
	if len(result.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %#v", result.Fragments)
	}
	if srv.hits["timedtext"] != 2 {
		t.Fatalf("expected two timed text requests, hits=%v", srv.hits)
	}
}

func TestAcquireExhaustionClassification(t *testing.T) {
	tests := []struct {
		name   string
		srv    captionServer
		marker error
	}{
		{
			name:   "nothing anywhere",
			srv:    captionServer{listBody: `{"items":[]}`, watchStatus: http.StatusNotFound},
			marker: services.ErrNoCaptions,
		},
		{
			name:   "quota beats absent",
			srv:    captionServer{listStatus: http.StatusTooManyRequests, watchStatus: http.StatusNotFound, timedTextStatus: http.StatusNotFound},
			marker: services.ErrQuota,
		},
		{
			name:   "transient beats quota",
			srv:    captionServer{listStatus: http.StatusForbidden, watchStatus: http.StatusBadGateway, timedTextStatus: http.StatusNotFound},
			marker: services.ErrTransient,
		},
		{
			name:   "unparseable payload counts as absent",
			srv:    captionServer{listStatus: http.StatusNotFound, watchStatus: http.StatusNotFound, timedTextBody: "WEBVTT\n\nnot a cue\n"},
			marker: services.ErrNoCaptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tt.srv
			acq, closeFn := newAcquirer(t, &srv)
			defer closeFn()

			_, err := acq.Acquire(context.Background(), "vid4", nil)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestAcquireWithoutAPIKeySkipsOfficialAPI(t *testing.T) {
	srv := &captionServer{hits: make(map[string]int)}
	var baseURL string
	server := httptest.NewServer(srv.handler(t, &baseURL))
	defer server.Close()
	baseURL = server.URL

	cfg := testsupport.NewConfig(t, testsupport.WithCaptionServer(server.URL), testsupport.WithAPIKey(""))
	acq := captions.New(cfg, logging.NewNop())

	result, err := acq.Acquire(context.Background(), "vid5", nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if srv.hits["list"] != 0 {
		t.Fatal("expected no listing request without api key")
	}
	if result.Attempts[0].Failure != "configuration" {
		t.Fatalf("expected configuration failure, got %#v", result.Attempts)
	}
}

type fakeLookup struct {
	video *youtube.Video
	err   error
	calls int
}

func (f *fakeLookup) GetVideoContext(_ context.Context, _ string) (*youtube.Video, error) {
	f.calls++
	return f.video, f.err
}

func TestAcquireUsesInnertubeTracks(t *testing.T) {
	srv := &captionServer{listStatus: http.StatusNotFound, watchStatus: http.StatusNotFound, hits: make(map[string]int)}
	var baseURL string
	server := httptest.NewServer(srv.handler(t, &baseURL))
	defer server.Close()
	baseURL = server.URL

	lookup := &fakeLookup{video: &youtube.Video{CaptionTracks: []youtube.CaptionTrack{
		{BaseURL: server.URL + "/track?lang=de", LanguageCode: "de"},
		{BaseURL: server.URL + "/track?lang=en", LanguageCode: "en", Kind: "asr"},
	}}}
	cfg := testsupport.NewConfig(t, testsupport.WithCaptionServer(server.URL))
	acq := captions.New(cfg, logging.NewNop(), captions.WithVideoLookup(lookup))

	want := []string{captions.StrategyOfficialAPI, captions.StrategyWatchPage, captions.StrategyInnertube, captions.StrategyTimedText}
	if got := acq.Strategies(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected strategy order %v", got)
	}

	result, err := acq.Acquire(context.Background(), "vid6", nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if result.Strategy != captions.StrategyInnertube || result.Language != "en" || lookup.calls != 1 {
		t.Fatalf("unexpected innertube result: %#v", result)
	}
	if srv.hits["timedtext"] != 0 {
		t.Fatal("expected timedtext to be skipped")
	}
}

func TestAcquireStopsWhenBudgetExhausted(t *testing.T) {
	srv := &captionServer{listStatus: http.StatusNotFound}
	acq, closeFn := newAcquirer(t, srv)
	defer closeFn()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := budget.New(time.Second, budget.WithClock(func() time.Time { return now }))
	now = now.Add(time.Minute)

	_, err := acq.Acquire(context.Background(), "vid7", tracker)
	if !errors.Is(err, services.ErrTransient) || !errors.Is(err, budget.ErrExceeded) {
		t.Fatalf("expected transient budget error, got %v", err)
	}
	if srv.hits["list"] != 1 || srv.hits["watch"] != 0 {
		t.Fatalf("expected only the first strategy to run, hits=%v", srv.hits)
	}
}

func TestExtractPlayerTracks(t *testing.T) {
	tracks, err := captions.ExtractPlayerTracks(watchPage("https://example.test/track?x=1"))
	if err != nil {
		t.Fatalf("ExtractPlayerTracks returned error: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Language != "fr" || !tracks[0].Generated() || tracks[1].Name != "English" {
		t.Fatalf("unexpected tracks: %#v", tracks)
	}

	if _, err := captions.ExtractPlayerTracks("<html><script>var ytInitialPlayerResponse = {\"broken\": </script></html>"); err == nil {
		t.Fatal("expected error for truncated player response")
	}
}
