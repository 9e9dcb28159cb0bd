package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source loads the table-to-file mapping from an external document.
// Implementations live next to this file, one per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type and its config keys.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is the interface every mapping source implements.
type Source interface {
	Spec() SourceSpec
	Load(ctx context.Context, cfg SourceConfig) (*Table, error)
}

// ErrUnknownSource is returned by GetSource for an unregistered type.
var ErrUnknownSource = errors.New("unknown mapping source")

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// Load resolves the source for typ and loads the mapping.
func Load(ctx context.Context, typ string, cfg SourceConfig) (*Table, error) {
	src, err := GetSource(typ)
	if err != nil {
		return nil, err
	}
	t, err := src.Load(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load %s mapping: %w", typ, err)
	}
	return t, nil
}

func stringOpt(cfg SourceConfig, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func requiredPath(cfg SourceConfig) (string, error) {
	p := stringOpt(cfg, "path", "")
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	return p, nil
}
