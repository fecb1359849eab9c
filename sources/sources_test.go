package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenverseParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "harbor dawn" {
			t.Errorf("unexpected query: %q", got)
		}
		w.Write([]byte(`{"results":[
			{"url":"https://img.example/a.jpg","width":2048,"height":1365},
			{"url":"https://img.example/b.jpg"},
			{"url":""}
		]}`))
	}))
	defer srv.Close()

	c := NewOpenverseClient(5, 0)
	c.baseURL = srv.URL

	cands, err := c.Search(context.Background(), "harbor dawn", Constraints{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates (empty URL dropped), got %d", len(cands))
	}
	first := cands[0]
	if first.ReportedWidth == nil || *first.ReportedWidth != 2048 {
		t.Fatalf("reported width lost: %+v", first)
	}
	if first.IsVideo {
		t.Fatal("image search must not mark candidates as video")
	}
	// Unreported dimensions must stay nil, never become zero
	if cands[1].ReportedWidth != nil || cands[1].ReportedHeight != nil {
		t.Fatalf("missing dimensions should be nil: %+v", cands[1])
	}
}

func TestOpenverseEmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewOpenverseClient(5, 0)
	c.baseURL = srv.URL

	cands, err := c.Search(context.Background(), "nothing matches this", Constraints{})
	if err != nil {
		t.Fatalf("empty results must not error: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected no candidates, got %d", len(cands))
	}
}

func TestOpenverseServerFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOpenverseClient(5, 0)
	c.baseURL = srv.URL

	_, err := c.Search(context.Background(), "anything", Constraints{})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Provider != "openverse" {
		t.Fatalf("error lost provider name: %+v", perr)
	}
}

func TestPexelsPicksLargestFileUnderCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("missing API key header")
		}
		w.Write([]byte(`{"videos":[{
			"duration": 12.0,
			"video_files":[
				{"width":1280,"height":720,"link":"https://v.example/720.mp4"},
				{"width":3840,"height":2160,"link":"https://v.example/4k.mp4"},
				{"width":1920,"height":1080,"link":"https://v.example/1080.mp4"}
			]
		}]}`))
	}))
	defer srv.Close()

	c := NewPexelsVideoClient("test-key", 5, 0, 1080)
	c.baseURL = srv.URL

	cands, err := c.Search(context.Background(), "storm clouds", Constraints{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	got := cands[0]
	if got.URL != "https://v.example/1080.mp4" {
		t.Fatalf("expected the 1080p file under the cap, got %s", got.URL)
	}
	if !got.IsVideo {
		t.Fatal("pexels candidates must be marked as video")
	}
	if got.ReportedDurationSec == nil || *got.ReportedDurationSec != 12.0 {
		t.Fatalf("duration lost: %+v", got)
	}
}

func TestPexelsWithoutKeyIsProviderError(t *testing.T) {
	c := NewPexelsVideoClient("", 5, 0, 1080)
	_, err := c.Search(context.Background(), "anything", Constraints{})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError for missing key, got %v", err)
	}
}

func TestPollinationsURLIsDeterministic(t *testing.T) {
	c := NewPollinationsClient(7)
	cons := Constraints{FrameWidth: 1920, FrameHeight: 1080}

	a, err := c.Search(context.Background(), "foggy forest", cons)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Search(context.Background(), "foggy forest", cons)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("synthesis should yield exactly one candidate")
	}
	if a[0].URL != b[0].URL {
		t.Fatalf("same query produced different synthesis URLs")
	}
	if !strings.Contains(a[0].URL, "width=1920") || !strings.Contains(a[0].URL, "seed=") {
		t.Fatalf("URL missing frame or seed parameters: %s", a[0].URL)
	}

	other, _ := c.Search(context.Background(), "sunny meadow", cons)
	if other[0].URL == a[0].URL {
		t.Fatalf("different queries should not share a synthesis URL")
	}
}

func TestPacerEnforcesMinimumGap(t *testing.T) {
	p := newPacer(0.05)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("three paced calls finished in %v, gap not enforced", elapsed)
	}
}

func TestPacerRespectsCancellation(t *testing.T) {
	p := newPacer(10)
	if err := p.wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.wait(ctx); err == nil {
		t.Fatal("cancelled wait should return the context error")
	}
}
