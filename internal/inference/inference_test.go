package inference

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"signal-systemv1/internal/feature"
	"signal-systemv1/internal/model"
)

type fixedModel struct {
	probs [model.NumClasses]float64
}

func (f fixedModel) PredictProba(feature.Vector) ([model.NumClasses]float64, error) {
	return f.probs, nil
}

func TestRegistry_LookupAndFallback(t *testing.T) {
	r := NewRegistry("BTCUSDT")

	if _, err := r.Lookup("BTCUSDT"); !errors.Is(err, ErrNoModel) {
		t.Fatalf("empty registry: err = %v, want ErrNoModel", err)
	}

	def := fixedModel{probs: [model.NumClasses]float64{1, 0, 0, 0, 0}}
	r.Register("btcusdt", def) // case-insensitive key

	m, err := r.Lookup("BTCUSDT")
	if err != nil {
		t.Fatalf("lookup own symbol: %v", err)
	}
	if m != def {
		t.Error("lookup returned wrong model")
	}

	// Unknown symbol falls back to the default symbol's model.
	m, err = r.Lookup("ETHUSDT")
	if err != nil {
		t.Fatalf("fallback lookup: %v", err)
	}
	if m != def {
		t.Error("fallback returned wrong model")
	}
}

func TestRegistry_NoFallbackWithoutDefaultModel(t *testing.T) {
	r := NewRegistry("BTCUSDT")
	r.Register("ETHUSDT", fixedModel{})

	if _, err := r.Lookup("SOLUSDT"); !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}
}

func testLinearModel(symbol string) *LinearModel {
	n := len(feature.Columns)
	coef := make([][]float64, model.NumClasses)
	for i := range coef {
		coef[i] = make([]float64, n)
	}
	// Weight the close feature toward StrongBuy so scores are deterministic.
	coef[int(model.StrongBuy)][0] = 0.001
	return &LinearModel{
		Symbol:    symbol,
		Coef:      coef,
		Intercept: make([]float64, model.NumClasses),
	}
}

func TestLinearModel_ProbabilitiesSumToOne(t *testing.T) {
	m := testLinearModel("BTCUSDT")
	probs, err := m.PredictProba(feature.Vector{Close: 25000, RSI14: 50})
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("probability out of range: %v", p)
		}
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probability sum = %v, want ~1", sum)
	}
	if sig, _ := model.ArgMax(probs); sig != model.StrongBuy {
		t.Errorf("argmax = %v, want StrongBuy with positive close weight", sig)
	}
}

func TestLinearModel_ValidateDimensions(t *testing.T) {
	m := testLinearModel("BTCUSDT")
	m.Coef = m.Coef[:3]
	if err := m.validate(); err == nil {
		t.Error("expected validation error for wrong row count")
	}

	m = testLinearModel("BTCUSDT")
	m.Intercept = []float64{1, 2}
	if err := m.validate(); err == nil {
		t.Error("expected validation error for wrong intercept count")
	}
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()

	good := testLinearModel("BTCUSDT")
	data, _ := json.Marshal(good)
	if err := os.WriteFile(filepath.Join(dir, "BTCUSDT.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	// Corrupt file must be skipped, not fatal.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry("BTCUSDT")
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	n, err := r.LoadDir(dir, log)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("loaded = %d, want 1", n)
	}
	if _, err := r.Lookup("BTCUSDT"); err != nil {
		t.Errorf("loaded model not registered: %v", err)
	}
}
