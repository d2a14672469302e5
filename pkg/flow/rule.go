package flow

import (
	"errors"
	"fmt"
)

// Grade selects what a rule's threshold counts.
type Grade int

const (
	GradeThread Grade = iota // concurrent calls
	GradeQps                 // passes per second
)

func (g Grade) String() string {
	if g == GradeThread {
		return "thread"
	}
	return "qps"
}

func (g *Grade) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "thread":
		*g = GradeThread
	case "qps", "":
		*g = GradeQps
	default:
		return fmt.Errorf("unknown flow grade: %q", s)
	}
	return nil
}

// Strategy selects which node a rule is checked against.
type Strategy int

const (
	StrategyDirect Strategy = iota
	StrategyRelate
	StrategyChain
)

func (s Strategy) String() string {
	switch s {
	case StrategyRelate:
		return "relate"
	case StrategyChain:
		return "chain"
	default:
		return "direct"
	}
}

func (s *Strategy) UnmarshalYAML(unmarshal func(any) error) error {
	var v string
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch v {
	case "direct", "":
		*s = StrategyDirect
	case "relate":
		*s = StrategyRelate
	case "chain":
		*s = StrategyChain
	default:
		return fmt.Errorf("unknown flow strategy: %q", v)
	}
	return nil
}

const (
	LimitOriginDefault = "default"
	LimitOriginOther   = "other"
)

var (
	ErrNilRule            = errors.New("nil flow rule")
	ErrEmptyResource      = errors.New("flow rule resource is empty")
	ErrNegativeCount      = errors.New("flow rule count is negative")
	ErrMissingRefResource = errors.New("flow rule strategy requires ref_resource")
)

// Rule is one flow-governance rule of a resource.
type Rule struct {
	Resource    string   `yaml:"resource"`
	Grade       Grade    `yaml:"grade"`
	Count       float64  `yaml:"count"`
	Strategy    Strategy `yaml:"strategy"`
	RefResource string   `yaml:"ref_resource"`
	LimitApp    string   `yaml:"limit_app"`

	// Local-fallback contract only: when cluster mode is on and no token
	// service is wired, the rule degrades to the local check (or passes).
	ClusterMode     bool `yaml:"cluster_mode"`
	FallbackToLocal bool `yaml:"fallback_to_local"`
}

func (r *Rule) ResourceName() string { return r.Resource }
func (r *Rule) LimitOrigin() string  { return r.LimitApp }

func (r *Rule) String() string {
	return fmt.Sprintf("flow{resource=%s grade=%s count=%v strategy=%s limitApp=%s}",
		r.Resource, r.Grade, r.Count, r.Strategy, r.LimitApp)
}

// Validate rejects malformed rules at registration time so admission never
// sees them.
func (r *Rule) Validate() error {
	if r == nil {
		return ErrNilRule
	}
	if r.Resource == "" {
		return ErrEmptyResource
	}
	if r.Count < 0 {
		return ErrNegativeCount
	}
	if r.Strategy != StrategyDirect && r.RefResource == "" {
		return ErrMissingRefResource
	}
	return nil
}
