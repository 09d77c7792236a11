package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
	"github.com/dgallion1/finextract/internal/render"
	"github.com/dgallion1/finextract/internal/vlm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, r render.Renderer, c vlm.Converter, opts Options) *Processor {
	t.Helper()
	p, err := NewProcessor(r, c, opts, testLogger())
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

type failingConverter struct{ err error }

func (f failingConverter) ConvertPage(ctx context.Context, img image.Image, page int) (string, error) {
	return "", f.err
}

type failingRenderer struct{}

func (failingRenderer) RenderPage(pdf []byte, page int) (*render.Page, error) {
	return nil, render.ErrPageOutOfRange
}

type countingRenderer struct {
	render.PlaceholderRenderer
	calls int
	last  *render.Page
}

func (r *countingRenderer) RenderPage(pdf []byte, page int) (*render.Page, error) {
	r.calls++
	p, err := r.PlaceholderRenderer.RenderPage(pdf, page)
	r.last = p
	return p, err
}

// flakyConverter fails with a retryable error until its failures run out.
type flakyConverter struct {
	failures int
	images   []image.Image
}

func (c *flakyConverter) ConvertPage(ctx context.Context, img image.Image, page int) (string, error) {
	c.images = append(c.images, img)
	if len(c.images) <= c.failures {
		return "", &vlm.RetryableError{StatusCode: 503, Message: "busy"}
	}
	return vlm.MockDocTags(), nil
}

func TestProcessMockDocument(t *testing.T) {
	p := newTestProcessor(t, &render.PlaceholderRenderer{}, vlm.NewMockClient(), DefaultOptions())

	st, err := p.Process(context.Background(), Input{Filename: "report.pdf", Page: 0})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := st.Metrics.Keys(); strings.Join(got, ",") != "Total Revenue,Net Income,Earnings Per Share" {
		t.Errorf("metric keys = %v", got)
	}
	if len(st.Regions) != 4 {
		t.Errorf("regions = %d, want 4", len(st.Regions))
	}
	if len(st.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", st.Warnings)
	}
	if !strings.HasPrefix(st.CSV, "Data_Type,Metric,Value,") {
		t.Errorf("csv header: %q", strings.SplitN(st.CSV, "\n", 2)[0])
	}
	if !strings.Contains(st.JSON, `"Total Revenue": "$1234.56"`) {
		t.Errorf("json missing revenue:\n%s", st.JSON)
	}
	img, err := png.Decode(bytes.NewReader(st.Overlay))
	if err != nil {
		t.Fatalf("overlay is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 612 || b.Dy() != 792 {
		t.Errorf("overlay size = %v", b)
	}
	if st.ContentHash != ContentHashHex([]byte(st.Markup)) {
		t.Error("content hash should cover the markup")
	}
	if snap := p.Stats().Snapshot(); snap.Count != 1 || snap.Failures != 0 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestProcessRendersOnce(t *testing.T) {
	r := &countingRenderer{}
	c := &flakyConverter{failures: 1}
	p := newTestProcessor(t, r, c, DefaultOptions())

	if _, err := p.Process(context.Background(), Input{Filename: "report.pdf"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1", r.calls)
	}
	if len(c.images) != 2 {
		t.Fatalf("convert attempts = %d, want 2", len(c.images))
	}
	for i, img := range c.images {
		if img != r.last.Image {
			t.Errorf("attempt %d did not receive the rendered page", i)
		}
	}
}

func TestProcessStageErrors(t *testing.T) {
	boom := errors.New("model offline")
	tests := []struct {
		name  string
		r     render.Renderer
		c     vlm.Converter
		stage Stage
		is    error
	}{
		{"render", failingRenderer{}, vlm.NewMockClient(), StageRender, render.ErrPageOutOfRange},
		{"convert", &render.PlaceholderRenderer{}, failingConverter{boom}, StageConvert, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.r, tt.c, DefaultOptions())
			_, err := p.Process(context.Background(), Input{Filename: "x.pdf"})
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", se.Stage, tt.stage)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("expected %v in chain, got %v", tt.is, err)
			}
		})
	}
}

func TestProcessConvertFailureCounted(t *testing.T) {
	p := newTestProcessor(t, &render.PlaceholderRenderer{}, failingConverter{errors.New("x")}, DefaultOptions())
	p.Process(context.Background(), Input{})
	if snap := p.Stats().Snapshot(); snap.Failures != 1 || snap.Count != 0 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestProcessMarkupParseError(t *testing.T) {
	p := newTestProcessor(t, nil, nil, DefaultOptions())
	_, err := p.ProcessMarkup(context.Background(), "bad.xml", "<root><otsl>")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageParse {
		t.Fatalf("expected parse StageError, got %v", err)
	}
	if !errors.Is(err, doctags.ErrMalformed) {
		t.Errorf("expected ErrMalformed in chain, got %v", err)
	}
	if p.memo.len() != 0 {
		t.Error("failed parses must not be cached")
	}
}

func TestProcessMarkupWarnings(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{
			name:   "no tables",
			markup: `<root><text bbox="0 0 10 10">hello</text></root>`,
			want:   []string{WarnNoTables},
		},
		{
			name:   "only empty tables",
			markup: `<root><otsl bbox="0 0 10 10"><header><cell>A</cell><cell>B</cell></header></otsl></root>`,
			want:   []string{WarnNoTables},
		},
		{
			name: "no matches",
			markup: `<root><otsl bbox="0 0 10 10"><header><cell>A</cell><cell>B</cell></header>` +
				`<row><cell>Headcount</cell><cell>12</cell></row></otsl></root>`,
			want: []string{WarnNoMetrics},
		},
	}
	p := newTestProcessor(t, nil, nil, DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := p.ProcessMarkup(context.Background(), "in.xml", tt.markup)
			if err != nil {
				t.Fatalf("ProcessMarkup: %v", err)
			}
			if strings.Join(st.Warnings, "|") != strings.Join(tt.want, "|") {
				t.Errorf("warnings = %v, want %v", st.Warnings, tt.want)
			}
		})
	}
}

func TestProcessMarkupIgnoresTablesWithoutRows(t *testing.T) {
	markup := `<root>
		<otsl bbox="0 0 100 20"><header><cell>A</cell><cell>B</cell></header>` +
		`<row><cell>only one</cell></row></otsl>
		<otsl bbox="0 40 100 80"><header><cell>Item</cell><cell>Amount</cell></header>` +
		`<row><cell>Revenue</cell><cell>1</cell></row></otsl>
	</root>`
	p := newTestProcessor(t, nil, nil, DefaultOptions())
	st, err := p.ProcessMarkup(context.Background(), "in.xml", markup)
	if err != nil {
		t.Fatalf("ProcessMarkup: %v", err)
	}
	if len(st.Tables()) != 1 {
		t.Fatalf("tables = %d, want 1", len(st.Tables()))
	}
	if len(st.Regions) != 2 {
		t.Fatalf("regions = %d, want metric row plus one table", len(st.Regions))
	}
	if st.Regions[1].BBox != (doctags.BBox{X1: 0, Y1: 40, X2: 100, Y2: 80}) {
		t.Errorf("table region = %+v, want the populated table", st.Regions[1].BBox)
	}
	if !strings.Contains(st.JSON, `"table_1"`) || strings.Contains(st.JSON, `"table_2"`) {
		t.Errorf("unexpected JSON tables:\n%s", st.JSON)
	}
	if !strings.Contains(st.CSV, "Table_1,") || strings.Contains(st.CSV, "Table_2") {
		t.Errorf("unexpected CSV sections:\n%s", st.CSV)
	}
}

func TestProcessMarkupMemoizes(t *testing.T) {
	p := newTestProcessor(t, nil, nil, DefaultOptions())
	markup := vlm.MockDocTags()

	first, err := p.ProcessMarkup(context.Background(), "a.xml", markup)
	if err != nil {
		t.Fatalf("ProcessMarkup: %v", err)
	}
	second, err := p.ProcessMarkup(context.Background(), "b.xml", markup)
	if err != nil {
		t.Fatalf("ProcessMarkup: %v", err)
	}
	if first.Document != second.Document {
		t.Error("expected cached document to be reused")
	}
	if second.Source != "b.xml" {
		t.Errorf("source = %q, want b.xml", second.Source)
	}
	if p.memo.len() != 1 {
		t.Errorf("cache entries = %d, want 1", p.memo.len())
	}
}

func TestAnalysisKeyCoversOptions(t *testing.T) {
	base := metrics.DefaultOptions()
	narrow := base
	narrow.Vocabulary = metrics.NewVocabulary("Revenue")
	constant := base
	constant.PreferCellGeometry = false

	k := analysisKey("<root/>", doctags.Parser{}, base)
	for name, other := range map[string]string{
		"markup":     analysisKey("<root></root>", doctags.Parser{}, base),
		"vocabulary": analysisKey("<root/>", doctags.Parser{}, narrow),
		"geometry":   analysisKey("<root/>", doctags.Parser{}, constant),
		"tags":       analysisKey("<root/>", doctags.Parser{TableTag: "table"}, base),
	} {
		if other == k {
			t.Errorf("changing %s should change the key", name)
		}
	}
	if analysisKey("<root/>", doctags.Parser{}, base) != k {
		t.Error("key should be deterministic")
	}
}

func TestProcessorWithoutCache(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 0
	p := newTestProcessor(t, nil, nil, opts)
	for range 2 {
		if _, err := p.ProcessMarkup(context.Background(), "a.xml", vlm.MockDocTags()); err != nil {
			t.Fatalf("ProcessMarkup: %v", err)
		}
	}
	if p.memo.len() != 0 {
		t.Errorf("cache entries = %d, want 0", p.memo.len())
	}
}

func TestNewProcessorFromConfig(t *testing.T) {
	cfg := config.Config{
		Vocabulary:   []string{"Revenue"},
		HeaderHeight: 30,
		RowHeight:    25,
		TableTag:     "otsl",
		TextTag:      "text",
		Renderer:     "placeholder",
		CacheSize:    4,
	}
	p, model, err := NewProcessorFromConfig(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewProcessorFromConfig: %v", err)
	}
	if model != MockModel {
		t.Errorf("model = %q", model)
	}
	st, err := p.Process(context.Background(), Input{Filename: "r.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if keys := st.Metrics.Keys(); len(keys) != 1 || keys[0] != "Total Revenue" {
		t.Errorf("keys = %v, want only revenue", keys)
	}

	cfg.VLMURL = "http://localhost:1/convert"
	cfg.VLMModel = "granite-docling"
	if _, model, _ = NewProcessorFromConfig(cfg, testLogger()); model != "granite-docling" {
		t.Errorf("remote model = %q", model)
	}
}
