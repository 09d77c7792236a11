package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"time"

	"github.com/dgallion1/finextract/internal/annotate"
	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/export"
	"github.com/dgallion1/finextract/internal/metrics"
	"github.com/dgallion1/finextract/internal/render"
	"github.com/dgallion1/finextract/internal/vlm"
)

// Options configures a Processor.
type Options struct {
	Parser    doctags.Parser
	Extract   metrics.Options
	Annotate  annotate.Options
	CacheSize int
}

func DefaultOptions() Options {
	return Options{
		Extract:   metrics.DefaultOptions(),
		Annotate:  annotate.DefaultOptions(),
		CacheSize: 128,
	}
}

// Input is one page of an uploaded PDF.
type Input struct {
	Filename string
	PDF      []byte
	Page     int // 0-based
}

// Processor runs the processing phases. It is safe for concurrent use.
type Processor struct {
	renderer  render.Renderer
	converter vlm.Converter
	stats     *vlm.Stats
	opts      Options
	memo      *memo
	log       *slog.Logger
	now       func() time.Time
}

func NewProcessor(renderer render.Renderer, converter vlm.Converter, opts Options, log *slog.Logger) (*Processor, error) {
	m, err := newMemo(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Processor{
		renderer:  renderer,
		converter: converter,
		stats:     vlm.NewStats(time.Hour),
		opts:      opts,
		memo:      m,
		log:       log,
		now:       time.Now,
	}, nil
}

// Stats returns the converter latency tracker.
func (p *Processor) Stats() *vlm.Stats { return p.stats }

// Process renders the page once, converts the image to markup and analyses
// the result.
func (p *Processor) Process(ctx context.Context, in Input) (*State, error) {
	log := p.log.With("source", in.Filename, "page", in.Page+1)

	page, err := p.renderer.RenderPage(in.PDF, in.Page)
	if err != nil {
		log.Error("render failed", "error", err)
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	start := time.Now()
	markup, err := vlm.ConvertWithRetry(ctx, p.converter, page.Image, in.Page, log)
	p.stats.Observe(start, err)
	if err != nil {
		log.Error("conversion failed", "error", err)
		return nil, &StageError{Stage: StageConvert, Err: err}
	}
	log.Info("page converted", "markup_bytes", len(markup), "duration_ms", time.Since(start).Milliseconds())

	return p.analyse(in.Filename, in.Page, markup, page, log)
}

// ProcessMarkup analyses markup that was produced elsewhere. The overlay is
// drawn on a blank letter-size page.
func (p *Processor) ProcessMarkup(ctx context.Context, source, markup string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.analyse(source, 0, markup, blankPage(), p.log.With("source", source))
}

func (p *Processor) analyse(source string, pageIndex int, markup string, page *render.Page, log *slog.Logger) (*State, error) {
	key := analysisKey(markup, p.opts.Parser, p.opts.Extract)
	a, hit := p.memo.get(key)
	if !hit {
		doc, err := p.opts.Parser.Parse(markup)
		if err != nil {
			log.Warn("markup rejected", "error", err)
			return nil, &StageError{Stage: StageParse, Err: err}
		}
		a = analysis{doc: doc, result: metrics.Extract(doc, p.opts.Extract)}
		p.memo.add(key, a)
	}

	log.Debug("markup analysed",
		"cached", hit,
		"tables", len(a.doc.Tables),
		"texts", len(a.doc.Texts),
		"dropped_tables", a.doc.DroppedTables,
		"dropped_rows", a.doc.DroppedRows,
		"metrics", a.result.Metrics.Len(),
	)

	aopts := p.opts.Annotate
	aopts.Scale = page.Scale
	overlay, err := annotate.EncodePNG(annotate.Draw(page.Image, a.result.Regions, aopts))
	if err != nil {
		return nil, &StageError{Stage: StageAnnotate, Err: err}
	}

	csvOut, err := export.CSV(a.result.Metrics, a.doc.Tables)
	if err != nil {
		return nil, &StageError{Stage: StageExport, Err: err}
	}
	jsonOut, err := export.JSON(a.result.Metrics, a.doc.Tables)
	if err == nil {
		err = export.ValidateJSON([]byte(jsonOut))
	}
	if err != nil {
		return nil, &StageError{Stage: StageExport, Err: err}
	}

	st := &State{
		Source:      source,
		Page:        pageIndex,
		Markup:      markup,
		Document:    a.doc,
		Metrics:     a.result.Metrics,
		Regions:     a.result.Regions,
		Overlay:     overlay,
		CSV:         csvOut,
		JSON:        jsonOut,
		Warnings:    warningsFor(a.doc, a.result.Metrics),
		ContentHash: ContentHashHex([]byte(markup)),
		CreatedAt:   p.now(),
	}
	for _, w := range st.Warnings {
		log.Info("extraction warning", "warning", w)
	}
	return st, nil
}

func blankPage() *render.Page {
	img := image.NewRGBA(image.Rect(0, 0, 612, 792))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return &render.Page{Image: img, Scale: 1}
}
