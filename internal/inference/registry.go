// Package inference wraps trained classifiers behind a fixed contract:
// feature vector in, 5-class probability vector out. Model lookup is by
// symbol with a designated default fallback; sessions for symbols with no
// model (and no default) are rejected before streaming starts.
package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"signal-systemv1/internal/feature"
	"signal-systemv1/internal/model"
)

// ErrNoModel indicates no model exists for the symbol nor for the default.
var ErrNoModel = errors.New("inference: no model available")

// Model is a trained classifier. Implementations must be pure: no side
// effects, same vector in, same probabilities out.
type Model interface {
	// PredictProba returns class probabilities in taxonomy order
	// [StrongSell, WeakSell, Hold, WeakBuy, StrongBuy], summing to ~1.
	PredictProba(v feature.Vector) ([model.NumClasses]float64, error)
}

// Registry maps symbols to models with one designated default symbol.
type Registry struct {
	mu            sync.RWMutex
	models        map[string]Model
	defaultSymbol string
}

// NewRegistry creates an empty registry. defaultSymbol names the fallback
// model used for symbols with no model of their own.
func NewRegistry(defaultSymbol string) *Registry {
	return &Registry{
		models:        make(map[string]Model),
		defaultSymbol: strings.ToUpper(defaultSymbol),
	}
}

// Register adds or replaces the model for a symbol.
func (r *Registry) Register(symbol string, m Model) {
	r.mu.Lock()
	r.models[strings.ToUpper(symbol)] = m
	r.mu.Unlock()
}

// Lookup resolves the model for a symbol, falling back to the default
// symbol's model. Returns ErrNoModel when neither exists.
func (r *Registry) Lookup(symbol string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.models[strings.ToUpper(symbol)]; ok {
		return m, nil
	}
	if m, ok := r.models[r.defaultSymbol]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w for %s", ErrNoModel, symbol)
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// LoadDir loads every *.json model file in dir into the registry, keyed by
// the model's symbol field (or the file name when absent). Returns the
// number of models loaded; unreadable files are logged and skipped.
func (r *Registry) LoadDir(dir string, log *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("inference: read models dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		m, err := LoadLinearModel(path)
		if err != nil {
			log.Warn("skipping model file", "path", path, "err", err)
			continue
		}
		symbol := m.Symbol
		if symbol == "" {
			symbol = strings.TrimSuffix(e.Name(), ".json")
		}
		r.Register(symbol, m)
		log.Info("model loaded", "symbol", symbol, "path", path)
		loaded++
	}
	return loaded, nil
}
