package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	drain3 "github.com/jaeyo/go-drain3/pkg/drain3"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

const patternPanelName = "log-patterns"

// Pattern is one mined message template with its observed frequency.
type Pattern struct {
	Template   string  `json:"template"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Drain3Manager wraps a drain3 template miner behind a mutex so the
// event callback and panel readers can share it. Cluster templates
// refine as the miner discovers parameters, so the latest mined
// template is kept per cluster rather than the first.
type Drain3Manager struct {
	mu        sync.Mutex
	miner     *drain3.TemplateMiner
	templates map[string]string
	counts    map[string]int
	total     int
}

// newTemplateMiner builds a miner with the library's default drain
// configuration and in-memory persistence. NewDrain only errors on
// invalid configuration, which the defaults cannot produce.
func newTemplateMiner() *drain3.TemplateMiner {
	d, err := drain3.NewDrain()
	if err != nil {
		panic(err)
	}
	return drain3.NewTemplateMiner(d, drain3.NewMemoryPersistence())
}

func NewDrain3Manager() *Drain3Manager {
	return &Drain3Manager{
		miner:     newTemplateMiner(),
		templates: make(map[string]string),
		counts:    make(map[string]int),
	}
}

// AddLogMessage feeds one message to the miner. Blank messages are
// skipped.
func (m *Drain3Manager) AddLogMessage(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, cluster, template, _, err := m.miner.AddLogMessage(context.Background(), msg)
	if err != nil || cluster == nil {
		return
	}
	id := fmt.Sprint(cluster.ClusterId)
	m.templates[id] = template
	m.counts[id]++
	m.total++
}

// GetTopPatterns returns up to n patterns, most frequent first, ties
// broken alphabetically by template.
func (m *Drain3Manager) GetTopPatterns(n int) []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pattern, 0, len(m.counts))
	for id, count := range m.counts {
		pct := 0.0
		if m.total > 0 {
			pct = float64(count) * 100 / float64(m.total)
		}
		out = append(out, Pattern{Template: m.templates[id], Count: count, Percentage: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Template < out[j].Template
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// GetStats reports the distinct pattern count and the total number of
// messages mined.
func (m *Drain3Manager) GetStats() (patterns, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counts), m.total
}

// Reset discards all mined state.
func (m *Drain3Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.miner = newTemplateMiner()
	m.templates = make(map[string]string)
	m.counts = make(map[string]int)
	m.total = 0
}

// PatternSummary clusters messages into drain3 templates, so repeated
// noise collapses into a handful of patterns. The current top patterns
// are published as a panel.
type PatternSummary struct {
	pctx     plugin.Context
	patterns *Drain3Manager
}

func NewPatternSummary() *PatternSummary {
	return &PatternSummary{patterns: NewDrain3Manager()}
}

func (p *PatternSummary) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "Pattern Summary",
		Version:          "1.0",
		Author:           "ringbuffer",
		Description:      "Cluster repeated messages into templates",
		MinEngineVersion: "1.0",
		Capabilities: []plugin.Capability{
			plugin.CapabilityAnalyzeEvents,
			plugin.CapabilityProvideUIPanel,
		},
	}
}

func (p *PatternSummary) OnLoad(_ context.Context, pctx plugin.Context) error {
	p.pctx = pctx
	return nil
}

func (p *PatternSummary) OnEvent(_ context.Context, ev *model.Event) error {
	p.patterns.AddLogMessage(ev.Message)
	p.pctx.AddPanel(patternPanelName, p.patterns.GetTopPatterns(10))
	return nil
}

func (p *PatternSummary) OnUnload(context.Context) error {
	p.patterns.Reset()
	return nil
}
