package performance

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// PacingType identifies the type of pacing.
type PacingType string

const (
	PacingNone     PacingType = "none"
	PacingConstant PacingType = "constant"
	PacingRandom   PacingType = "random"
)

// PacingConfig controls the pause between iterations of a VU.
type PacingConfig struct {
	// Type of pacing: "none", "constant", "random"
	Type PacingType

	// Duration for constant pacing
	Duration time.Duration

	// Min duration for random pacing
	Min time.Duration

	// Max duration for random pacing
	Max time.Duration
}

// Validate checks the pacing settings.
func (p *PacingConfig) Validate() error {
	if p == nil {
		return nil
	}

	switch p.Type {
	case PacingNone, "":
	case PacingConstant:
		if p.Duration < 0 {
			return &ValidationError{Field: "pacing.duration", Message: "must be >= 0"}
		}
	case PacingRandom:
		if p.Min < 0 || p.Max < 0 {
			return &ValidationError{Field: "pacing", Message: "min and max must be >= 0"}
		}
		if p.Max < p.Min {
			return &ValidationError{Field: "pacing.max", Message: "must be >= min"}
		}
	default:
		return &ValidationError{Field: "pacing.type", Message: fmt.Sprintf("unknown pacing type %q", p.Type)}
	}
	return nil
}

// Next returns the pause before the next iteration.
func (p *PacingConfig) Next() time.Duration {
	if p == nil {
		return 0
	}

	switch p.Type {
	case PacingConstant:
		return p.Duration
	case PacingRandom:
		diff := p.Max - p.Min
		if diff > 0 {
			return p.Min + time.Duration(rand.Int64N(int64(diff)))
		}
		return p.Min
	default:
		return 0
	}
}

// String describes the pacing for reports.
func (p *PacingConfig) String() string {
	if p == nil {
		return string(PacingNone)
	}
	switch p.Type {
	case PacingConstant:
		return fmt.Sprintf("constant %v", p.Duration)
	case PacingRandom:
		return fmt.Sprintf("random %v-%v", p.Min, p.Max)
	default:
		return string(PacingNone)
	}
}
