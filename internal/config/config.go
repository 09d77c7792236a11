package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/finextract/internal/metrics"
)

type Config struct {
	Port string

	// Auth; empty disables it
	APIKey string

	// Metric vocabulary and row geometry
	Vocabulary         []string
	VocabularyFile     string
	HeaderHeight       float64
	RowHeight          float64
	PreferCellGeometry bool

	// Markup element names
	TableTag string
	TextTag  string

	// Page rendering: "placeholder" or "fitz"
	Renderer  string
	RenderDPI int

	// Remote conversion model; empty URL uses the built-in mock
	VLMURL     string
	VLMAPIKey  string
	VLMModel   string
	VLMTimeout time.Duration

	CacheSize      int
	SessionTTL     time.Duration
	MaxUploadBytes int64
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("FINEXTRACT_API_KEY"),

		Vocabulary:         envList("VOCABULARY", metrics.DefaultTerms),
		VocabularyFile:     os.Getenv("VOCABULARY_FILE"),
		HeaderHeight:       envFloat("HEADER_HEIGHT", 30),
		RowHeight:          envFloat("ROW_HEIGHT", 25),
		PreferCellGeometry: envBool("PREFER_CELL_GEOMETRY", true),

		TableTag: envOr("TABLE_TAG", "otsl"),
		TextTag:  envOr("TEXT_TAG", "text"),

		Renderer:  strings.ToLower(envOr("RENDERER", "placeholder")),
		RenderDPI: envInt("RENDER_DPI", 72),

		VLMURL:     os.Getenv("VLM_URL"),
		VLMAPIKey:  os.Getenv("VLM_API_KEY"),
		VLMModel:   envOr("VLM_MODEL", "granite-docling"),
		VLMTimeout: envDuration("VLM_TIMEOUT", 120*time.Second),

		CacheSize:      envInt("CACHE_SIZE", 128),
		SessionTTL:     envDuration("SESSION_TTL", 1*time.Hour),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
	}

	if cfg.HeaderHeight < 0 {
		cfg.HeaderHeight = 30
	}
	if cfg.RowHeight <= 0 {
		cfg.RowHeight = 25
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 72
	}
	if cfg.VLMTimeout <= 0 {
		cfg.VLMTimeout = 120 * time.Second
	}
	if cfg.CacheSize < 0 {
		cfg.CacheSize = 0
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.Renderer {
	case "placeholder", "fitz":
	default:
		return fmt.Errorf("RENDERER must be placeholder or fitz, got %q", c.Renderer)
	}
	if c.VLMURL != "" {
		u, err := url.Parse(c.VLMURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("VLM_URL is not an absolute URL: %q", c.VLMURL)
		}
	}
	if c.TableTag == "" || c.TextTag == "" {
		return fmt.Errorf("TABLE_TAG and TEXT_TAG must not be empty")
	}
	if _, err := c.Terms(); err != nil {
		return err
	}
	return nil
}

// VocabularySpec is the layout of a VOCABULARY_FILE.
type VocabularySpec struct {
	Terms []string `yaml:"terms"`
}

// LoadVocabularyFile reads the terms from a YAML vocabulary file.
func LoadVocabularyFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	var spec VocabularySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}
	if len(metrics.NewVocabulary(spec.Terms...)) == 0 {
		return nil, fmt.Errorf("vocabulary file %s has no terms", path)
	}
	return spec.Terms, nil
}

// Terms returns the vocabulary file's terms when one is configured, and the
// VOCABULARY list otherwise.
func (c Config) Terms() ([]string, error) {
	if c.VocabularyFile != "" {
		return LoadVocabularyFile(c.VocabularyFile)
	}
	return c.Vocabulary, nil
}

// ExtractOptions builds the metric extraction options.
func (c Config) ExtractOptions() (metrics.Options, error) {
	terms, err := c.Terms()
	if err != nil {
		return metrics.Options{}, err
	}
	return metrics.Options{
		Vocabulary:         metrics.NewVocabulary(terms...),
		HeaderHeight:       c.HeaderHeight,
		RowHeight:          c.RowHeight,
		PreferCellGeometry: c.PreferCellGeometry,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList splits a comma-separated variable, dropping blank items.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
