package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/cognicore/nerpt/pkg/ner/config"
	"github.com/cognicore/nerpt/pkg/ner/pipeline"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/store"
	"github.com/cognicore/nerpt/pkg/ner/store/memstore"
	"github.com/cognicore/nerpt/pkg/ner/store/sqlite"
)

func main() {
	klog.InitFlags(nil)
	var (
		addr      = flag.String("addr", ":8080", "Listen address")
		configDir = flag.String("config", "", "Bundle directory overriding the embedded defaults (optional)")
		dbPath    = flag.String("db", "", "SQLite database for tables and run history (optional)")
		reqRate   = flag.Float64("rate", 5, "Analyses per second allowed per client")
		burst     = flag.Int("burst", 10, "Burst size of the per-client limiter")
	)
	flag.Parse()
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.Loader{Dir: *configDir, DBPath: *dbPath}
	res, err := loader.Load(ctx)
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}
	orch, err := pipeline.New(res)
	if err != nil {
		klog.Fatalf("Failed to build pipeline: %v", err)
	}
	if !orch.Supports(pipeline.Hybrid) {
		klog.Fatalf("Configuration has no %s model; hybrid requests would all fail", scoring.CRF)
	}
	know, err := loader.LoadKnowledge(ctx)
	if err != nil {
		klog.Fatalf("Failed to load knowledge base: %v", err)
	}

	var runs store.Store = memstore.New()
	if *dbPath != "" {
		if runs, err = sqlite.OpenSQLite(ctx, *dbPath); err != nil {
			klog.Fatalf("Failed to open database: %v", err)
		}
	}
	defer runs.Close()

	srv, err := newServer(orch, know, runs, rate.Limit(*reqRate), *burst)
	if err != nil {
		klog.Fatalf("Failed to build server: %v", err)
	}
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	klog.Infof("ner-server listening on %s (config=%q db=%q rate=%v burst=%d)", *addr, *configDir, *dbPath, *reqRate, *burst)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		klog.Fatalf("Server failed: %v", err)
	}
}
