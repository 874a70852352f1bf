package chaos

import (
	"errors"
	"fmt"
	"time"

	"github.com/getmockd/serialmock/pkg/template"
)

// FaultType names a kind of fault.
type FaultType string

const (
	// FaultLatency delays the answer.
	FaultLatency FaultType = "latency"
	// FaultDrop suppresses the answer.
	FaultDrop FaultType = "drop"
	// FaultCorrupt flips bits in the answer.
	FaultCorrupt FaultType = "corrupt"
	// FaultTruncate cuts the answer short.
	FaultTruncate FaultType = "truncate"
)

// Config configures fault injection.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Profile names a built-in profile used when Global is unset.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	Global *Faults `json:"global,omitempty" yaml:"global,omitempty"`
	Rules  []Rule  `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Rule applies faults to frames matching an ask pattern and a condition.
// At least one of Ask and When is required.
type Rule struct {
	// Ask is a template in repeat-file syntax; $N and @fn act as wildcards.
	Ask string `json:"ask,omitempty" yaml:"ask,omitempty"`

	// When is an expression over frame, size and hex, e.g. "frame[2] > 0x7F".
	When string `json:"when,omitempty" yaml:"when,omitempty"`

	Faults Faults `json:"faults" yaml:"faults"`
}

// Faults is a set of faults, each rolled independently.
type Faults struct {
	Latency  *LatencyFault  `json:"latency,omitempty" yaml:"latency,omitempty"`
	Drop     *DropFault     `json:"drop,omitempty" yaml:"drop,omitempty"`
	Corrupt  *CorruptFault  `json:"corrupt,omitempty" yaml:"corrupt,omitempty"`
	Truncate *TruncateFault `json:"truncate,omitempty" yaml:"truncate,omitempty"`
}

// LatencyFault delays answers by a random duration.
type LatencyFault struct {
	Min         string  `json:"min" yaml:"min"` // e.g. "10ms"
	Max         string  `json:"max" yaml:"max"` // e.g. "200ms"
	Probability float64 `json:"probability" yaml:"probability"`
}

// DropFault suppresses answers.
type DropFault struct {
	Probability float64 `json:"probability" yaml:"probability"`
}

// CorruptFault flips one random bit in a fraction of the answer bytes.
// At least one byte is corrupted.
type CorruptFault struct {
	Rate        float64 `json:"rate" yaml:"rate"` // fraction of bytes (0.0-1.0)
	Probability float64 `json:"probability" yaml:"probability"`
}

// TruncateFault keeps between MinPercent and MaxPercent of the answer.
type TruncateFault struct {
	MinPercent  float64 `json:"minPercent" yaml:"minPercent"` // 0.0-1.0
	MaxPercent  float64 `json:"maxPercent" yaml:"maxPercent"` // 0.0-1.0
	Probability float64 `json:"probability" yaml:"probability"`
}

// Stats counts injected faults.
type Stats struct {
	Frames   int64               `json:"frames"`
	Injected int64               `json:"injected"`
	ByType   map[FaultType]int64 `json:"byType"`
}

// ErrUnknownProfile is returned for a profile name that is not built in.
var ErrUnknownProfile = errors.New("unknown chaos profile")

func validateProbability(value float64, field string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("%s must be between 0.0 and 1.0, got %v", field, value)
	}
	return nil
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Profile != "" {
		if _, ok := GetProfile(c.Profile); !ok {
			return fmt.Errorf("%w: %q (have %v)", ErrUnknownProfile, c.Profile, ProfileNames())
		}
	}
	if c.Global != nil {
		if err := c.Global.Validate(); err != nil {
			return fmt.Errorf("global: %w", err)
		}
	}
	for i, rule := range c.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks the rule's selectors and faults.
func (r *Rule) Validate() error {
	if r.Ask == "" && r.When == "" {
		return errors.New("ask or when is required")
	}
	if r.Ask != "" {
		if _, err := template.Parse(r.Ask); err != nil {
			return fmt.Errorf("ask: %w", err)
		}
	}
	if r.When != "" {
		if _, err := compileCondition(r.When); err != nil {
			return err
		}
	}
	return r.Faults.Validate()
}

// Validate checks every configured fault.
func (f *Faults) Validate() error {
	if f.Latency != nil {
		if _, _, err := f.Latency.bounds(); err != nil {
			return err
		}
		if err := validateProbability(f.Latency.Probability, "latency.probability"); err != nil {
			return err
		}
	}
	if f.Drop != nil {
		if err := validateProbability(f.Drop.Probability, "drop.probability"); err != nil {
			return err
		}
	}
	if f.Corrupt != nil {
		if err := validateProbability(f.Corrupt.Rate, "corrupt.rate"); err != nil {
			return err
		}
		if err := validateProbability(f.Corrupt.Probability, "corrupt.probability"); err != nil {
			return err
		}
	}
	if f.Truncate != nil {
		t := f.Truncate
		if err := validateProbability(t.MinPercent, "truncate.minPercent"); err != nil {
			return err
		}
		if err := validateProbability(t.MaxPercent, "truncate.maxPercent"); err != nil {
			return err
		}
		if t.MinPercent > t.MaxPercent {
			return fmt.Errorf("truncate.minPercent (%v) exceeds maxPercent (%v)", t.MinPercent, t.MaxPercent)
		}
		if err := validateProbability(t.Probability, "truncate.probability"); err != nil {
			return err
		}
	}
	return nil
}

func (l *LatencyFault) bounds() (time.Duration, time.Duration, error) {
	minDur, err := time.ParseDuration(l.Min)
	if err != nil {
		return 0, 0, fmt.Errorf("latency.min: invalid duration %q", l.Min)
	}
	maxDur, err := time.ParseDuration(l.Max)
	if err != nil {
		return 0, 0, fmt.Errorf("latency.max: invalid duration %q", l.Max)
	}
	if minDur < 0 || maxDur < 0 {
		return 0, 0, errors.New("latency must not be negative")
	}
	if minDur > maxDur {
		minDur, maxDur = maxDur, minDur
	}
	return minDur, maxDur, nil
}
