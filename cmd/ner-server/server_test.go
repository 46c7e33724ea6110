package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"github.com/cognicore/nerpt/pkg/ner/config"
	"github.com/cognicore/nerpt/pkg/ner/pipeline"
	"github.com/cognicore/nerpt/pkg/ner/store"
	"github.com/cognicore/nerpt/pkg/ner/store/memstore"
)

func buildServer(t *testing.T, limit rate.Limit, burst int) (*server, store.Store) {
	t.Helper()
	ctx := context.Background()
	loader := &config.Loader{}
	res, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	know, err := loader.LoadKnowledge(ctx)
	if err != nil {
		t.Fatalf("LoadKnowledge: %v", err)
	}
	orch, err := pipeline.New(res)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	runs := memstore.New()
	srv, err := newServer(orch, know, runs, limit, burst)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return srv, runs
}

func newTestServer(t *testing.T, limit rate.Limit, burst int) (*httptest.Server, store.Store) {
	t.Helper()
	srv, runs := buildServer(t, limit, burst)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, runs
}

func post(t *testing.T, url, path string, req pipeline.Request) *http.Response {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(url+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postAnalyze(t *testing.T, url string, req pipeline.Request) *http.Response {
	t.Helper()
	return post(t, url, "/analyze", req)
}

func TestAnalyze(t *testing.T) {
	ts, runs := newTestServer(t, rate.Inf, 1)

	resp := postAnalyze(t, ts.URL, pipeline.Request{Text: "Santos Dumont chegou em Paris.", Mode: "hybrid", Tokenizer: "standard"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		RunID string `json:"run_id"`
		Spans []struct {
			Text  string `json:"text"`
			Label string `json:"label"`
		} `json:"spans"`
		Events []struct {
			Stage string `json:"stage"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out.Spans) != 2 || out.Spans[0].Text != "Santos Dumont" || out.Spans[1].Label != "LOC" {
		t.Errorf("Unexpected spans %+v", out.Spans)
	}
	if last := out.Events[len(out.Events)-1].Stage; last != "done" {
		t.Errorf("Expected trace to end with done, got %s", last)
	}

	recent, err := runs.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != out.RunID {
		t.Errorf("Expected the run to be recorded, got %+v", recent)
	}
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, rate.Inf, 1)

	resp := postAnalyze(t, ts.URL, pipeline.Request{Text: "x", Mode: "quantum"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown mode, got %d", resp.StatusCode)
	}
	var body errorResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Kind != "configuration" {
		t.Errorf("Expected configuration kind, got %q", body.Kind)
	}

	get, err := http.Get(ts.URL + "/analyze")
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", get.StatusCode)
	}

	raw, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", raw.StatusCode)
	}
}

func TestAnalyzeRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, rate.Every(time.Hour), 1)

	req := pipeline.Request{Text: "Fiocruz", Mode: "rules_only"}
	if resp := postAnalyze(t, ts.URL, req); resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", resp.StatusCode)
	}
	if resp := postAnalyze(t, ts.URL, req); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
}

func TestLimitersAreBounded(t *testing.T) {
	srv, _ := buildServer(t, rate.Every(time.Hour), 1)
	limiters, err := lru.New[string, *rate.Limiter](2)
	if err != nil {
		t.Fatal(err)
	}
	srv.limiters = limiters

	first := srv.limiter("10.0.0.1:1000")
	if srv.limiter("10.0.0.1:2000") != first {
		t.Error("Expected one limiter per host regardless of port")
	}
	srv.limiter("10.0.0.2:1000")
	srv.limiter("10.0.0.3:1000")

	if n := srv.limiters.Len(); n != 2 {
		t.Errorf("Expected 2 limiters kept, got %d", n)
	}
	if srv.limiter("10.0.0.1:1000") == first {
		t.Error("Expected the least recently seen client to be forgotten")
	}
}

func TestDisambiguate(t *testing.T) {
	ts, _ := newTestServer(t, rate.Inf, 1)

	resp := post(t, ts.URL, "/disambiguate", pipeline.Request{Text: "Santos Dumont chegou em Paris."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		RunID    string `json:"run_id"`
		Entities []struct {
			Original string   `json:"original_label"`
			Resolved string   `json:"resolved_label"`
			Clues    []string `json:"clues"`
		} `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.RunID == "" {
		t.Error("Expected a run id")
	}
	if len(out.Entities) != 2 {
		t.Fatalf("Expected 2 entities, got %+v", out.Entities)
	}
	if out.Entities[0].Resolved != "PER" || len(out.Entities[0].Clues) == 0 {
		t.Errorf("Expected Santos Dumont resolved to PER with clues, got %+v", out.Entities[0])
	}
	if out.Entities[1].Resolved != "LOC" {
		t.Errorf("Expected Paris resolved to LOC, got %+v", out.Entities[1])
	}
}

func TestLink(t *testing.T) {
	ts, runs := newTestServer(t, rate.Inf, 1)

	resp := post(t, ts.URL, "/link", pipeline.Request{Text: "Santos Dumont chegou em Paris.", Mode: "hybrid"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Links []struct {
			Match *struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"match"`
			Score float64 `json:"score"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out.Links) != 2 {
		t.Fatalf("Expected 2 links, got %+v", out.Links)
	}
	if out.Links[0].Match != nil {
		t.Errorf("Expected Santos Dumont unlinked, got %+v", out.Links[0].Match)
	}
	if m := out.Links[1].Match; m == nil || m.ID != "Q90" || !strings.HasSuffix(m.URL, "/Q90") {
		t.Errorf("Expected Paris linked to Q90, got %+v", m)
	}

	recent, err := runs.RecentRuns(context.Background(), 1)
	if err != nil || len(recent) != 1 {
		t.Errorf("Expected the linked run to be recorded, got %v, %v", recent, err)
	}

	if resp := post(t, ts.URL, "/link", pipeline.Request{Text: "x", Mode: "svm"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown mode, got %d", resp.StatusCode)
	}
}

func TestStreamSendsEachEvent(t *testing.T) {
	ts, _ := newTestServer(t, rate.Inf, 1)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()
	ws.SetDeadline(time.Now().Add(10 * time.Second))

	if err := websocket.JSON.Send(ws, pipeline.Request{Text: "Zumbi dos Palmares", Mode: "rules_only"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var stages []string
	for {
		var ev struct {
			Seq   int    `json:"seq"`
			Stage string `json:"stage"`
		}
		if err := websocket.JSON.Receive(ws, &ev); err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if ev.Seq != len(stages) {
			t.Errorf("Expected seq %d, got %d", len(stages), ev.Seq)
		}
		stages = append(stages, ev.Stage)
		if ev.Stage == "done" || ev.Stage == "error" {
			break
		}
	}
	want := "tokenized,rules_matched,spanned,done"
	if got := strings.Join(stages, ","); got != want {
		t.Errorf("Expected stages %s, got %s", want, got)
	}

	// A configuration error produces a single error message.
	if err := websocket.JSON.Send(ws, pipeline.Request{Text: "x", Tokenizer: "morse"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var msg streamError
	if err := websocket.JSON.Receive(ws, &msg); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Stage != pipeline.StageError || msg.Payload.Kind != "configuration" {
		t.Errorf("Expected configuration error message, got %+v", msg)
	}
}

func TestDemoTextsAndRuns(t *testing.T) {
	ts, _ := newTestServer(t, rate.Inf, 1)

	resp, err := http.Get(ts.URL + "/demo-texts")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var texts []demoText
	if err := json.NewDecoder(resp.Body).Decode(&texts); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(texts) != len(demoTexts) {
		t.Errorf("Expected %d demo texts, got %d", len(demoTexts), len(texts))
	}

	postAnalyze(t, ts.URL, pipeline.Request{Text: texts[0].Text})

	runsResp, err := http.Get(ts.URL + "/runs?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer runsResp.Body.Close()
	var runs []store.Run
	if err := json.NewDecoder(runsResp.Body).Decode(&runs); err != nil {
		t.Fatalf("Decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Mode != "hybrid" {
		t.Errorf("Expected one hybrid run, got %+v", runs)
	}

	bad, err := http.Get(ts.URL + "/runs?limit=zero")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", bad.StatusCode)
	}
}

func TestDemoTextsAnalyzeInEveryMode(t *testing.T) {
	res, err := (&config.Loader{}).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	orch, err := pipeline.New(res)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range demoTexts {
		for _, mode := range pipeline.Modes {
			if _, err := orch.Run(d.Text, mode, "standard"); err != nil {
				t.Errorf("%s/%s: %v", d.Domain, mode, err)
			}
		}
	}
}
