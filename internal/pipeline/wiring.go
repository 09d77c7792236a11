package pipeline

import (
	"log/slog"

	"github.com/dgallion1/finextract/internal/config"
	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/render"
	"github.com/dgallion1/finextract/internal/vlm"
)

// MockModel is the model name reported when no VLM_URL is configured.
const MockModel = "mock"

// NewProcessorFromConfig builds the renderer, converter and options cfg
// describes. It returns the processor and the converter's model name.
func NewProcessorFromConfig(cfg config.Config, log *slog.Logger) (*Processor, string, error) {
	extract, err := cfg.ExtractOptions()
	if err != nil {
		return nil, "", err
	}
	opts := DefaultOptions()
	opts.Extract = extract
	opts.Parser = doctags.Parser{TableTag: cfg.TableTag, TextTag: cfg.TextTag}
	opts.CacheSize = cfg.CacheSize

	var renderer render.Renderer = &render.PlaceholderRenderer{}
	if cfg.Renderer == "fitz" {
		renderer = &render.FitzRenderer{DPI: cfg.RenderDPI}
	}

	var converter vlm.Converter = vlm.NewMockClient()
	model := MockModel
	if cfg.VLMURL != "" {
		converter = vlm.NewRemoteClient(cfg.VLMURL, cfg.VLMAPIKey, cfg.VLMModel, cfg.VLMTimeout)
		model = cfg.VLMModel
	}

	proc, err := NewProcessor(renderer, converter, opts, log)
	if err != nil {
		return nil, "", err
	}
	log.Info("processor configured",
		"renderer", cfg.Renderer,
		"model", model,
		"vocabulary", len(extract.Vocabulary),
		"cache_size", cfg.CacheSize,
	)
	return proc, model, nil
}
