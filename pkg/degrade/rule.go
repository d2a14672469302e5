package degrade

import (
	"errors"
	"fmt"
	"time"
)

// Grade selects the breaker's trigger metric.
type Grade int

const (
	GradeSlowRatio Grade = iota
	GradeExceptionRatio
	GradeExceptionCount
)

func (g Grade) String() string {
	switch g {
	case GradeSlowRatio:
		return "slow_ratio"
	case GradeExceptionRatio:
		return "exception_ratio"
	default:
		return "exception_count"
	}
}

func (g *Grade) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "slow_ratio":
		*g = GradeSlowRatio
	case "exception_ratio":
		*g = GradeExceptionRatio
	case "exception_count", "":
		*g = GradeExceptionCount
	default:
		return fmt.Errorf("unknown degrade grade: %q", s)
	}
	return nil
}

var (
	ErrNilRule           = errors.New("nil degrade rule")
	ErrEmptyResource     = errors.New("degrade rule resource is empty")
	ErrNegativeThreshold = errors.New("degrade rule count is negative")
	ErrRatioOutOfRange   = errors.New("degrade ratio threshold must be in [0, 1]")
	ErrBadTimeWindow     = errors.New("degrade rule time_window must be positive")
)

const (
	defaultStatIntervalMs   = 1000
	defaultMinRequestAmount = 5
)

// Rule is one circuit-breaking rule of a resource.
type Rule struct {
	Resource         string        `yaml:"resource"`
	Grade            Grade         `yaml:"grade"`
	Count            float64       `yaml:"count"`       // threshold: count, ratio or slow ratio
	TimeWindow       time.Duration `yaml:"time_window"` // recovery timeout
	StatInterval     time.Duration `yaml:"stat_interval"`
	MinRequestAmount int64         `yaml:"min_request_amount"`
	MaxAllowedRt     time.Duration `yaml:"max_allowed_rt"` // slow-ratio mode only
	LimitApp         string        `yaml:"limit_app"`
}

func (r *Rule) ResourceName() string { return r.Resource }

func (r *Rule) LimitOrigin() string {
	if r.LimitApp == "" {
		return "default"
	}
	return r.LimitApp
}

func (r *Rule) String() string {
	return fmt.Sprintf("degrade{resource=%s grade=%s count=%v timeWindow=%s}",
		r.Resource, r.Grade, r.Count, r.TimeWindow)
}

// StatIntervalMs returns the breaker ring span, defaulted when unset.
func (r *Rule) StatIntervalMs() int64 {
	if r.StatInterval <= 0 {
		return defaultStatIntervalMs
	}
	return r.StatInterval.Milliseconds()
}

func (r *Rule) minRequests() int64 {
	if r.MinRequestAmount <= 0 {
		return defaultMinRequestAmount
	}
	return r.MinRequestAmount
}

// Validate rejects malformed rules at registration time.
func (r *Rule) Validate() error {
	if r == nil {
		return ErrNilRule
	}
	if r.Resource == "" {
		return ErrEmptyResource
	}
	if r.Count < 0 {
		return ErrNegativeThreshold
	}
	if (r.Grade == GradeSlowRatio || r.Grade == GradeExceptionRatio) && r.Count > 1 {
		return ErrRatioOutOfRange
	}
	if r.TimeWindow <= 0 {
		return ErrBadTimeWindow
	}
	return nil
}
