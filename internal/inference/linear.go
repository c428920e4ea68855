package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"signal-systemv1/internal/feature"
	"signal-systemv1/internal/model"
)

// LinearModel is a multinomial logistic classifier loaded from a JSON
// coefficient export (one weight row per class, optional feature
// standardization). Training happens elsewhere; this side only scores.
type LinearModel struct {
	Symbol     string      `json:"symbol"`
	Coef       [][]float64 `json:"coefficients"`  // [NumClasses][len(feature.Columns)]
	Intercept  []float64   `json:"intercepts"`    // [NumClasses]
	Mean       []float64   `json:"feature_means"` // optional, per-feature
	Scale      []float64   `json:"feature_stds"`  // optional, per-feature
}

// LoadLinearModel reads and validates a model file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inference: read model: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("inference: parse model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	n := len(feature.Columns)
	if len(m.Coef) != model.NumClasses {
		return fmt.Errorf("inference: model has %d coefficient rows, want %d", len(m.Coef), model.NumClasses)
	}
	for i, row := range m.Coef {
		if len(row) != n {
			return fmt.Errorf("inference: coefficient row %d has %d entries, want %d", i, len(row), n)
		}
	}
	if len(m.Intercept) != model.NumClasses {
		return fmt.Errorf("inference: model has %d intercepts, want %d", len(m.Intercept), model.NumClasses)
	}
	if len(m.Mean) != 0 && len(m.Mean) != n {
		return fmt.Errorf("inference: feature_means has %d entries, want %d", len(m.Mean), n)
	}
	if len(m.Scale) != 0 && len(m.Scale) != n {
		return fmt.Errorf("inference: feature_stds has %d entries, want %d", len(m.Scale), n)
	}
	return nil
}

// PredictProba scores the feature vector: standardize, linear logits,
// softmax. Pure function of (model, vector).
func (m *LinearModel) PredictProba(v feature.Vector) ([model.NumClasses]float64, error) {
	x := v.Values()
	for i := range x {
		if len(m.Mean) > 0 {
			x[i] -= m.Mean[i]
		}
		if len(m.Scale) > 0 && m.Scale[i] != 0 {
			x[i] /= m.Scale[i]
		}
	}

	var logits [model.NumClasses]float64
	for c := 0; c < model.NumClasses; c++ {
		z := m.Intercept[c]
		for i, xi := range x {
			z += m.Coef[c][i] * xi
		}
		logits[c] = z
	}
	return softmax(logits), nil
}

func softmax(z [model.NumClasses]float64) [model.NumClasses]float64 {
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	var out [model.NumClasses]float64
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
