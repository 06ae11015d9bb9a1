package classifier

import (
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/loan-desk/internal/model"
)

var errNoPath = eris.New("classifier: no model path configured")

// Artifact is the on-disk form of a trained logistic regression model.
// Coefficients are keyed by feature name.
type Artifact struct {
	Kind      string             `yaml:"kind"`
	Version   string             `yaml:"version,omitempty"`
	Weights   map[string]float64 `yaml:"weights"`
	Intercept float64            `yaml:"intercept"`
	Threshold *float64           `yaml:"threshold,omitempty"`
	Mean      map[string]float64 `yaml:"mean,omitempty"`
	Scale     map[string]float64 `yaml:"scale,omitempty"`
}

// LoadArtifact reads a model artifact from a YAML file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classifier: read artifact %s", path)
	}
	var art Artifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, eris.Wrapf(err, "classifier: parse artifact %s", path)
	}
	return &art, nil
}

// Logistic is the trained backend.
type Logistic struct {
	weights   [model.FeatureCount]float64
	mean      [model.FeatureCount]float64
	scale     [model.FeatureCount]float64
	intercept float64
	threshold float64
	version   string
}

// NewLogistic validates an artifact and builds the backend from it.
func NewLogistic(art *Artifact) (*Logistic, error) {
	if art == nil {
		return nil, eris.New("classifier: nil artifact")
	}
	if art.Kind != "logistic" {
		return nil, eris.Errorf("classifier: unsupported model kind %q", art.Kind)
	}

	if !finite(art.Intercept) {
		return nil, eris.Errorf("classifier: intercept %v is not finite", art.Intercept)
	}

	lr := &Logistic{intercept: art.Intercept, threshold: 0.5, version: art.Version}
	if art.Threshold != nil {
		if !finite(*art.Threshold) || *art.Threshold <= 0 || *art.Threshold >= 1 {
			return nil, eris.Errorf("classifier: threshold %v outside (0, 1)", *art.Threshold)
		}
		lr.threshold = *art.Threshold
	}

	if err := fill(&lr.weights, art.Weights, "weights", nil); err != nil {
		return nil, err
	}
	if err := fill(&lr.mean, art.Mean, "mean", ptr(0.0)); err != nil {
		return nil, err
	}
	if err := fill(&lr.scale, art.Scale, "scale", ptr(1.0)); err != nil {
		return nil, err
	}
	for i, s := range lr.scale {
		if s == 0 {
			return nil, eris.Errorf("classifier: scale for %s must be non-zero", model.FeatureNames[i])
		}
	}
	return lr, nil
}

func ptr[T any](v T) *T { return &v }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// fill maps named coefficients onto vector positions. With def == nil every
// feature must be present; otherwise absent features take def.
func fill(dst *[model.FeatureCount]float64, src map[string]float64, section string, def *float64) error {
	known := make(map[string]bool, model.FeatureCount)
	for _, name := range model.FeatureNames {
		known[name] = true
	}
	var unknown []string
	for name := range src {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return eris.Errorf("classifier: %s names unknown features: %s", section, strings.Join(unknown, ", "))
	}

	var missing, bad []string
	for i, name := range model.FeatureNames {
		v, ok := src[name]
		switch {
		case ok && !finite(v):
			bad = append(bad, name)
		case ok:
			dst[i] = v
		case def != nil:
			dst[i] = *def
		default:
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("classifier: %s missing features: %s", section, strings.Join(missing, ", "))
	}
	if len(bad) > 0 {
		return eris.Errorf("classifier: %s not finite for: %s", section, strings.Join(bad, ", "))
	}
	return nil
}

// Probability returns the modelled approval probability.
func (l *Logistic) Probability(fv model.FeatureVector) float64 {
	z := l.intercept
	for i, x := range fv.Values() {
		z += l.weights[i] * (float64(x) - l.mean[i]) / l.scale[i]
	}
	return 1 / (1 + math.Exp(-z))
}

func (l *Logistic) Predict(fv model.FeatureVector) (Label, error) {
	p := l.Probability(fv)
	if math.IsNaN(p) {
		return Reject, eris.New("classifier: prediction is not a number")
	}
	if p >= l.threshold {
		return Approve, nil
	}
	return Reject, nil
}

func (l *Logistic) Kind() Kind { return KindTrained }

// Version returns the artifact version string, if any.
func (l *Logistic) Version() string { return l.version }
