package guard

import (
	"errors"
	"fmt"
)

// ErrPriorityWait is the internal signal that a prioritized request was
// admitted against a future bucket. It never surfaces to callers as a
// failure.
var ErrPriorityWait = errors.New("priority wait")

type BlockType int

const (
	BlockTypeFlow BlockType = iota
	BlockTypeDegrade
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeFlow:
		return "flow"
	case BlockTypeDegrade:
		return "degrade"
	default:
		return "unknown"
	}
}

// Rule is the slice of a governance rule a block error carries back to the
// caller.
type Rule interface {
	ResourceName() string
	LimitOrigin() string
}

// BlockError is the typed failure surfaced for every rejected entry. It
// carries the triggered rule and its limit origin so adapters can map it.
type BlockError struct {
	blockType BlockType
	rule      Rule
	limitApp  string
}

func NewBlockError(blockType BlockType, rule Rule) *BlockError {
	return &BlockError{blockType: blockType, rule: rule, limitApp: rule.LimitOrigin()}
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("blocked by %s rule on resource %q (limit origin %q)",
		e.blockType, e.rule.ResourceName(), e.limitApp)
}

func (e *BlockError) BlockType() BlockType { return e.blockType }
func (e *BlockError) TriggeredRule() Rule  { return e.rule }
func (e *BlockError) LimitApp() string     { return e.limitApp }

// IsBlockError reports whether err is (or wraps) a block failure.
func IsBlockError(err error) bool {
	var be *BlockError
	return errors.As(err, &be)
}
