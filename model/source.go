package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source delivers one model-refresh cycle's worth of parameter bundles.
type Source interface {
	Fetch() ([]Params, error)
}

type fileParams struct {
	InstrumentA  string  `yaml:"instrument_a" json:"instrument_a"`
	InstrumentB  string  `yaml:"instrument_b" json:"instrument_b"`
	Alpha        float64 `yaml:"alpha" json:"alpha"`
	Beta         float64 `yaml:"beta" json:"beta"`
	ResidualMean float64 `yaml:"residual_mean" json:"residual_mean"`
	ResidualStd  float64 `yaml:"residual_std" json:"residual_std"`
	QualityScore float64 `yaml:"quality_score" json:"quality_score"`
	Class        string  `yaml:"class" json:"class"`
}

// FileSource reads parameter bundles from a YAML file, the handoff format
// used by the offline modeling pipeline.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch() ([]Params, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}

	var raw []fileParams
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse params file: %w", err)
	}

	out := make([]Params, 0, len(raw))
	for _, r := range raw {
		p := Params{
			InstrumentA:  r.InstrumentA,
			InstrumentB:  r.InstrumentB,
			Alpha:        r.Alpha,
			Beta:         r.Beta,
			ResidualMean: r.ResidualMean,
			ResidualStd:  r.ResidualStd,
			QualityScore: r.QualityScore,
		}
		switch r.Class {
		case "", "prime":
			p.Class = Prime
		case "watch":
			p.Class = Watch
		case "legacy":
			p.Class = Legacy
		default:
			return nil, fmt.Errorf("params %s/%s: unknown class %q", r.InstrumentA, r.InstrumentB, r.Class)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
