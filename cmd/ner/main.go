package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/cognicore/nerpt/pkg/ner/config"
	"github.com/cognicore/nerpt/pkg/ner/pipeline"
)

func main() {
	klog.InitFlags(nil)
	var (
		configDir = flag.String("config", "", "Bundle directory overriding the embedded defaults (optional)")
		dbPath    = flag.String("db", "", "SQLite database written by ner-import (optional)")
		mode      = flag.String("mode", "hybrid", "Algorithm mode: "+modeList())
		tokMode   = flag.String("tokenizer", "standard", "Tokenizer mode: standard, char_level, aggressive, conservative, bpe_lite")
		text      = flag.String("text", "", "One-shot text (non-interactive mode)")
		asJSON    = flag.Bool("json", false, "Print the full trace as JSON")
	)
	flag.Parse()
	defer klog.Flush()

	ctx := context.Background()
	o, err := buildOrchestrator(ctx, *configDir, *dbPath)
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}

	analyze := func(input string) error {
		res, err := o.RunRequest(pipeline.Request{Text: input, Mode: *mode, Tokenizer: *tokMode})
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(os.Stdout, res)
		}
		fmt.Println(render(input, res))
		return nil
	}

	// One-shot mode
	if *text != "" {
		if err := analyze(*text); err != nil {
			klog.Fatal(err)
		}
		return
	}
	if flag.NArg() > 0 {
		if err := analyze(strings.Join(flag.Args(), " ")); err != nil {
			klog.Fatal(err)
		}
		return
	}

	// Interactive mode
	fmt.Println(titleStyle.Render("Portuguese NER"))
	fmt.Printf("mode %s, tokenizer %s. Type a sentence (Ctrl+D to exit).\n\n", *mode, *tokMode)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := analyze(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Println()
	}
	if err := scanner.Err(); err != nil {
		klog.Errorf("read input: %v", err)
	}
}

func buildOrchestrator(ctx context.Context, dir, dbPath string) (*pipeline.Orchestrator, error) {
	loader := config.Loader{Dir: dir, DBPath: dbPath}
	res, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.New(res)
}

func writeJSON(w io.Writer, res pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func modeList() string {
	names := make([]string, len(pipeline.Modes))
	for i, m := range pipeline.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
