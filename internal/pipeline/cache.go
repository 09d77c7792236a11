package pipeline

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
)

// analysis is the memoized output of parse and extract for one markup.
type analysis struct {
	doc    *doctags.Document
	result metrics.Result
}

// memo caches analyses keyed by a hash of everything that affects them.
type memo struct {
	cache *lru.Cache[string, analysis]
}

func newMemo(size int) (*memo, error) {
	if size <= 0 {
		return &memo{}, nil
	}
	c, err := lru.New[string, analysis](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &memo{cache: c}, nil
}

func (m *memo) get(key string) (analysis, bool) {
	if m.cache == nil {
		return analysis{}, false
	}
	return m.cache.Get(key)
}

func (m *memo) add(key string, a analysis) {
	if m.cache != nil {
		m.cache.Add(key, a)
	}
}

func (m *memo) len() int {
	if m.cache == nil {
		return 0
	}
	return m.cache.Len()
}

// analysisKey hashes the markup together with the parser tags and
// extraction options.
func analysisKey(markup string, p doctags.Parser, opts metrics.Options) string {
	var b strings.Builder
	b.WriteString(markup)
	b.WriteByte(0)
	fmt.Fprintf(&b, "%s|%s|%g|%g|%t", p.TableTag, p.TextTag,
		opts.HeaderHeight, opts.RowHeight, opts.PreferCellGeometry)
	b.WriteByte(0)
	b.WriteString(strings.Join(opts.Vocabulary, "\x1f"))
	return ContentHashHex([]byte(b.String()))
}
