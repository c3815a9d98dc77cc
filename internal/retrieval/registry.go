package retrieval

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/antoniostano/guides/internal/mode"
)

// DefaultTopK is how many passages a retrieval query returns by default.
const DefaultTopK = 3

// Passage is one retrieved chunk of guide material.
type Passage struct {
	Content string
	Score   float64
}

// Backend answers retrieval queries for a single mode's index.
type Backend interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
	Close() error
}

// Registry holds one retrieval backend per mode. Modes whose index failed to
// load are simply absent; the answering layer checks Available before
// generating.
type Registry struct {
	backends map[mode.Mode]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[mode.Mode]Backend)}
}

// Register installs a backend for m, replacing any previous one.
func (r *Registry) Register(m mode.Mode, b Backend) {
	r.backends[m] = b
}

// LoadDir opens <dir>/<mode>.db for every known mode. Each index loads
// independently: a missing or corrupt file logs a warning and leaves that
// mode unavailable without affecting the others.
func (r *Registry) LoadDir(dir string) {
	for _, m := range mode.All() {
		path := filepath.Join(dir, string(m)+".db")
		idx, err := OpenIndex(path)
		if err != nil {
			log.Printf("retrieval: index for %s unavailable (%s): %v", m, path, err)
			continue
		}
		r.backends[m] = idx
		log.Printf("retrieval: loaded index for %s from %s", m, path)
	}
}

// Available reports whether m has a loaded index.
func (r *Registry) Available(m mode.Mode) bool {
	_, ok := r.backends[m]
	return ok
}

// Retrieve queries the index for m. Asking for an unavailable mode is a
// caller bug surfaced as an error rather than an empty result.
func (r *Registry) Retrieve(ctx context.Context, m mode.Mode, query string, topK int) ([]Passage, error) {
	b, ok := r.backends[m]
	if !ok {
		return nil, fmt.Errorf("no index loaded for mode %q", m)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return b.Retrieve(ctx, query, topK)
}

// Loaded returns the modes with a live index, in stable order.
func (r *Registry) Loaded() []mode.Mode {
	out := make([]mode.Mode, 0, len(r.backends))
	for m := range r.backends {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Missing returns the modes without a loaded index, in stable order.
func (r *Registry) Missing() []mode.Mode {
	var out []mode.Mode
	for _, m := range mode.All() {
		if !r.Available(m) {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) Close() error {
	var firstErr error
	for m, b := range r.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close index for %s: %w", m, err)
		}
	}
	return firstErr
}
