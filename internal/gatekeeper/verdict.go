// ABOUTME: Verdict type returned for every handled request
// ABOUTME: Either a block reason or a classification result with cache history

package gatekeeper

import (
	"time"

	"github.com/osintkit/gatekeeper/internal/classify"
)

// BlockReason says which gate denied a request.
type BlockReason string

const (
	BlockCooldown BlockReason = "cooldown"
	BlockQuota    BlockReason = "quota"
)

// Verdict is the outcome of one gatekeeper invocation. Exactly one of
// the two shapes applies: a blocked verdict carries only the reason, a
// result verdict carries the classification and cache history.
type Verdict struct {
	Blocked bool
	Reason  BlockReason

	Kind  classify.Kind
	Value string
	IsNew bool
	// Hits is what the caller reports: 1 for a first sighting, the
	// pre-increment history count for a repeat.
	Hits      int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// blocked builds a denial verdict.
func blocked(reason BlockReason) *Verdict {
	return &Verdict{Blocked: true, Reason: reason}
}

// outcome is the label used for logging and metrics.
func (v *Verdict) outcome() string {
	if v.Blocked {
		return string(v.Reason)
	}
	return "result"
}
