// Command finextract extracts key metrics from PDF pages or DocTags files
// and writes the exports next to each other in an output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/export"
	"github.com/dgallion1/finextract/internal/pipeline"
	"github.com/dgallion1/finextract/internal/report"
)

var allFormats = []string{"csv", "json", "xlsx", "png", "html", "docx"}

func main() {
	docTagsPtr := flag.String("doctags", "", "DocTags file to analyse instead of PDF arguments")
	pagePtr := flag.Int("page", 1, "PDF page to convert (1-based)")
	outPtr := flag.String("out", "output", "Output directory")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Inputs processed concurrently")
	vocabPtr := flag.String("vocab", "", "YAML vocabulary file (overrides VOCABULARY_FILE)")
	formatsPtr := flag.String("formats", "csv,json,xlsx,png,html", "Comma-separated outputs: "+strings.Join(allFormats, ","))
	verbosePtr := flag.Bool("v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: finextract [flags] report.pdf ...\n       finextract [flags] -doctags page.xml\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbosePtr {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(log, *docTagsPtr, flag.Args(), *pagePtr, *outPtr, *workersPtr, *vocabPtr, *formatsPtr); err != nil {
		log.Error("finextract failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, docTags string, pdfs []string, page int, out string, workers int, vocab, formats string) error {
	if docTags == "" && len(pdfs) == 0 {
		flag.Usage()
		return fmt.Errorf("no input")
	}
	if page < 1 {
		return fmt.Errorf("-page must be at least 1")
	}
	want, err := parseFormats(formats)
	if err != nil {
		return err
	}
	if err := checkOutputNames(pdfs); err != nil {
		return err
	}

	cfg := config.Load()
	if vocab != "" {
		cfg.VocabularyFile = vocab
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	proc, _, err := pipeline.NewProcessorFromConfig(cfg, log)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if docTags != "" {
		markup, err := os.ReadFile(docTags)
		if err != nil {
			return fmt.Errorf("read doctags: %w", err)
		}
		st, err := proc.ProcessMarkup(ctx, filepath.Base(docTags), string(markup))
		if err != nil {
			return fmt.Errorf("%s: %w", docTags, err)
		}
		return writeOutputs(log, st, out, want)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, path := range pdfs {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			st, err := proc.Process(gctx, pipeline.Input{Filename: filepath.Base(path), PDF: data, Page: page - 1})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return writeOutputs(log, st, out, want)
		})
	}
	return g.Wait()
}

func parseFormats(s string) (map[string]bool, error) {
	want := map[string]bool{}
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		known := false
		for _, a := range allFormats {
			known = known || a == f
		}
		if !known {
			return nil, fmt.Errorf("unknown format %q", f)
		}
		want[f] = true
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("no output formats selected")
	}
	return want, nil
}

// outputStem is the file name, without extension, that the exports of
// source are written under.
func outputStem(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// checkOutputNames rejects inputs whose exports would overwrite each other
// in the flat output directory. Stems are compared case-insensitively.
func checkOutputNames(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		key := strings.ToLower(outputStem(p))
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%s and %s would both write %s.*; rename one", prev, p, outputStem(p))
		}
		seen[key] = p
	}
	return nil
}

func writeOutputs(log *slog.Logger, st *pipeline.State, dir string, want map[string]bool) error {
	base := filepath.Join(dir, outputStem(st.Source))

	outputs := map[string]func() ([]byte, error){
		"csv":  func() ([]byte, error) { return []byte(st.CSV), nil },
		"json": func() ([]byte, error) { return []byte(st.JSON + "\n"), nil },
		"xlsx": func() ([]byte, error) { return export.XLSX(st.Metrics, st.Tables()) },
		"png":  func() ([]byte, error) { return st.Overlay, nil },
		"html": func() ([]byte, error) { return report.HTML(st.Summary()) },
		"docx": func() ([]byte, error) { return report.DOCX(st.Summary()) },
	}
	for _, f := range allFormats {
		if !want[f] {
			continue
		}
		data, err := outputs[f]()
		if err != nil {
			return fmt.Errorf("%s %s: %w", st.Source, f, err)
		}
		path := base + "." + f
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	log.Info("extracted",
		"source", st.Source,
		"metrics", st.Metrics.Len(),
		"tables", len(st.Tables()),
		"warnings", strings.Join(st.Warnings, "; "),
	)
	return nil
}
