package main

import (
	"context"
	"flag"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/cognicore/nerpt/pkg/ner/config"
	"github.com/cognicore/nerpt/pkg/ner/store/sqlite"
)

func main() {
	klog.InitFlags(nil)
	var (
		dbPath    = flag.String("db", "", "Database path (required)")
		configDir = flag.String("config", "", "Bundle directory; files it lacks come from the embedded defaults (optional)")
	)
	flag.Parse()
	defer klog.Flush()

	if *dbPath == "" {
		klog.Fatal("--db required")
	}

	ctx := context.Background()
	sum, err := importBundle(ctx, *configDir, *dbPath)
	if err != nil {
		klog.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Imported into %s:\n", *dbPath)
	fmt.Printf("  gazetteer entries: %d\n", sum.entries)
	fmt.Printf("  patterns:          %d\n", sum.patterns)
	fmt.Printf("  documents:         %v\n", sum.documents)
}

type summary struct {
	entries   int
	patterns  int
	documents []string
}

// importBundle validates the bundle in dir (or the embedded defaults when
// dir is empty) and writes it to the database at dbPath.
func importBundle(ctx context.Context, dir, dbPath string) (summary, error) {
	var (
		b   *config.Bundle
		err error
	)
	if dir != "" {
		b, err = config.ReadDir(dir)
	} else {
		b, err = config.DefaultBundle()
	}
	if err != nil {
		return summary{}, err
	}

	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		return summary{}, fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := b.Save(ctx, st); err != nil {
		return summary{}, fmt.Errorf("save bundle: %w", err)
	}
	klog.V(1).Infof("bundle from %q saved to %s", dir, dbPath)

	var sum summary
	entries, err := st.GazetteerEntries(ctx)
	if err != nil {
		return summary{}, err
	}
	sum.entries = len(entries)
	patterns, err := st.Patterns(ctx)
	if err != nil {
		return summary{}, err
	}
	sum.patterns = len(patterns)
	if sum.documents, err = st.DocumentNames(ctx); err != nil {
		return summary{}, err
	}
	return sum, nil
}
