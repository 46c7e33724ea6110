package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/cognicore/nerpt/pkg/ner/config"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/ned"
	"github.com/cognicore/nerpt/pkg/ner/nel"
	"github.com/cognicore/nerpt/pkg/ner/pipeline"
	"github.com/cognicore/nerpt/pkg/ner/store"
)

const (
	maxBodyBytes = 1 << 20

	// maxClients bounds the per-client limiters kept in memory. The least
	// recently seen client is forgotten first.
	maxClients = 4096
)

type server struct {
	orch *pipeline.Orchestrator
	know config.Knowledge
	runs store.Store

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

func newServer(orch *pipeline.Orchestrator, know config.Knowledge, runs store.Store, limit rate.Limit, burst int) (*server, error) {
	limiters, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &server{
		orch:     orch,
		know:     know,
		runs:     runs,
		limit:    limit,
		burst:    burst,
		limiters: limiters,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/disambiguate", s.handleDisambiguate)
	mux.HandleFunc("/link", s.handleLink)
	mux.Handle("/ws", websocket.Server{
		// Browsers on any origin may stream traces.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   s.handleStream,
	})
	mux.HandleFunc("/demo-texts", handleDemoTexts)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// limiter returns the limiter of a client address.
func (s *server) limiter(remoteAddr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters.Get(host); ok {
		return l
	}
	l := rate.NewLimiter(s.limit, s.burst)
	s.limiters.Add(host, l)
	return l
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  internalerr.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("write response: %v", err)
	}
}

func errorBody(err error) errorResponse {
	kind, _ := internalerr.KindOf(err)
	return errorResponse{Error: err.Error(), Kind: kind}
}

// analyze runs one request and records it in the run history. A run that
// failed inside the pipeline still returns its partial trace.
func (s *server) analyze(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	res, err := s.orch.RunRequest(req)
	if err != nil {
		return res, err
	}
	run := store.Run{
		ID:        res.RunID,
		Mode:      string(res.Mode),
		Tokenizer: string(res.Tokenizer),
		Text:      req.Text,
		Spans:     res.Spans,
		CreatedAt: time.Now(),
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		klog.Warningf("save run %s: %v", res.RunID, err)
	}
	klog.V(1).Infof("analyze %s: mode=%s tokens=%d spans=%d", res.RunID, res.Mode, len(res.Tokens), len(res.Spans))
	return res, nil
}

// runPost is the shared part of the POST endpoints. It writes the error
// response itself and reports false when the handler should stop.
func (s *server) runPost(w http.ResponseWriter, r *http.Request) (pipeline.Result, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return pipeline.Result{}, false
	}
	if !s.limiter(r.RemoteAddr).Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return pipeline.Result{}, false
	}

	var req pipeline.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return pipeline.Result{}, false
	}

	res, err := s.analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, internalerr.ErrConfiguration) && len(res.Events) == 0 {
			writeJSON(w, http.StatusBadRequest, errorBody(err))
			return res, false
		}
		// The trace ends with an error event.
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return res, false
	}
	return res, true
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.runPost(w, r); ok {
		writeJSON(w, http.StatusOK, res)
	}
}

type disambiguateResponse struct {
	RunID    string       `json:"run_id"`
	Entities []ned.Entity `json:"entities"`
}

func (s *server) handleDisambiguate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runPost(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, disambiguateResponse{
		RunID:    res.RunID,
		Entities: s.know.Disambiguator.Apply(res),
	})
}

type linkResponse struct {
	RunID string     `json:"run_id"`
	Links []nel.Link `json:"links"`
}

func (s *server) handleLink(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runPost(w, r)
	if !ok {
		return
	}
	entities := s.know.Disambiguator.Apply(res)
	writeJSON(w, http.StatusOK, linkResponse{
		RunID: res.RunID,
		Links: s.know.Base.Link(entities),
	})
}

// streamError is sent on the socket when a request fails before any event.
type streamError struct {
	Stage   pipeline.Stage        `json:"stage"`
	Payload pipeline.ErrorPayload `json:"payload"`
}

// handleStream reads requests from the socket and sends each trace event as
// its own JSON message, as soon as the stage records it.
func (s *server) handleStream(ws *websocket.Conn) {
	defer ws.Close()
	remote := ws.Request().RemoteAddr
	lim := s.limiter(remote)
	ctx := ws.Request().Context()

	for {
		var req pipeline.Request
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			klog.V(2).Infof("ws %s: closed: %v", remote, err)
			return
		}
		if err := lim.Wait(ctx); err != nil {
			return
		}

		var sendErr error
		req.OnEvent = func(ev pipeline.Event) {
			if sendErr == nil {
				sendErr = websocket.JSON.Send(ws, ev)
			}
		}
		res, err := s.analyze(ctx, req)
		if sendErr != nil {
			klog.V(2).Infof("ws %s: send: %v", remote, sendErr)
			return
		}
		if err != nil && len(res.Events) == 0 {
			kind, _ := internalerr.KindOf(err)
			msg := streamError{Stage: pipeline.StageError, Payload: pipeline.ErrorPayload{Kind: kind, Message: err.Error()}}
			if err := websocket.JSON.Send(ws, msg); err != nil {
				return
			}
		}
	}
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func handleDemoTexts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, demoTexts)
}
