package tools

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/webclient"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("tool already registered")
)

// Info describes a registered tool for listings.
type Info struct {
	Name       string             `json:"name"`
	Price      int                `json:"price"`
	Targets    []model.TargetType `json:"targetTypes"`
	Configured bool               `json:"configured"`
}

type entry struct {
	adapter Adapter
	price   int
}

// Registry maps tool ids to adapters and their per-invocation price.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// NewDefaultRegistry registers every built-in adapter that is not disabled.
func NewDefaultRegistry(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := NewRegistry()
	builtins := []struct {
		tc ToolConfig
		a  Adapter
	}{
		{cfg.Maigret, NewMaigretAdapter(cfg.Maigret, wc, logger)},
		{cfg.SpiderFoot, NewSpiderFootAdapter(cfg.SpiderFoot, wc, logger)},
		{cfg.ReconNG, NewReconNGAdapter(cfg.ReconNG, wc, logger)},
		{cfg.Harvester, NewHarvesterAdapter(cfg.Harvester, wc, logger)},
	}
	for _, b := range builtins {
		if b.tc.Disabled {
			continue
		}
		if err := r.Register(b.a, b.tc.Price); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a under its lower-cased name.
func (r *Registry) Register(a Adapter, price int) error {
	if a == nil {
		return errors.New("nil adapter")
	}
	if price < 0 {
		return fmt.Errorf("tool %s: negative price", a.Name())
	}
	name := strings.ToLower(a.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.entries[name] = entry{adapter: a, price: price}
	return nil
}

func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.adapter, ok
}

func (r *Registry) Price(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.price, ok
}

// Cost sums the price of every named tool. It fails on the first unknown id.
func (r *Registry) Cost(names []string) (int, error) {
	total := 0
	for _, n := range names {
		p, ok := r.Price(n)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownTool, n)
		}
		total += p
	}
	return total, nil
}

// Names returns the registered ids in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for n := range r.entries {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Describe lists every registered tool, sorted by name.
func (r *Registry) Describe() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range names {
		e := r.entries[n]
		out = append(out, Info{
			Name:       n,
			Price:      e.price,
			Targets:    e.adapter.SupportedTargets(),
			Configured: e.adapter.Configured(),
		})
	}
	return out
}
