package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/shared"
)

// CounterKind identifies a sequential document numbering scheme
type CounterKind string

const (
	CounterKindInvoice CounterKind = "invoice"
	CounterKindReceipt CounterKind = "receipt"
)

// IsValid checks if the counter kind is valid
func (k CounterKind) IsValid() bool {
	return k == CounterKindInvoice || k == CounterKindReceipt
}

// String returns the string representation of CounterKind
func (k CounterKind) String() string {
	return string(k)
}

// NumberRange is the configured [Start, End] window and current cursor for
// one counter kind. Invariant: Start <= Current <= End+1. Allocation fails
// once Current > End.
type NumberRange struct {
	Kind    CounterKind `json:"kind"`
	Start   int64       `json:"start"`
	End     int64       `json:"end"`
	Current int64       `json:"current"`
}

// NewNumberRange creates a configured number range positioned at its start
func NewNumberRange(kind CounterKind, start, end int64) (*NumberRange, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_COUNTER_KIND", fmt.Sprintf("Unknown counter kind %q", kind))
	}
	if start <= 0 {
		return nil, shared.NewDomainError("INVALID_RANGE", "Range start must be positive")
	}
	if end < start {
		return nil, shared.NewDomainError("INVALID_RANGE", "Range end must not be below start")
	}
	return &NumberRange{Kind: kind, Start: start, End: end, Current: start}, nil
}

// Validate checks the range invariant
func (r *NumberRange) Validate() error {
	if r.Current < r.Start || r.Current > r.End+1 {
		return shared.NewDomainError("INVALID_RANGE", fmt.Sprintf("Cursor %d outside [%d, %d+1]", r.Current, r.Start, r.End))
	}
	return nil
}

// Exhausted returns true once every number in the range has been consumed
func (r *NumberRange) Exhausted() bool {
	return r.Current > r.End
}

// Remaining returns how many numbers are left in the range
func (r *NumberRange) Remaining() int64 {
	if r.Exhausted() {
		return 0
	}
	return r.End - r.Current + 1
}

// Next consumes and returns the current number. The persistence layer must
// pair this with a single conditional update; two callers must never observe
// the same cursor.
func (r *NumberRange) Next() (int64, error) {
	if r.Exhausted() {
		return 0, shared.NewDomainError("RANGE_EXHAUSTED",
			fmt.Sprintf("Number %d exceeds the configured maximum %d for %s numbering, update the range in settings", r.Current, r.End, r.Kind))
	}
	n := r.Current
	r.Current++
	return n, nil
}

// NumberAllocation is the result of consuming a document number
type NumberAllocation struct {
	Kind   CounterKind
	Number int64
	// Unmanaged is set when the number was synthesized because no range is
	// configured for the kind. Downstream reconciliation uses it to detect
	// unmanaged numbering.
	Unmanaged bool
}

// UnmanagedNumber synthesizes a timestamp-derived number for counters with
// no configured range. Only callers that explicitly opt in to fallback
// numbering may use it.
func UnmanagedNumber(kind CounterKind, now time.Time) NumberAllocation {
	v, _ := strconv.ParseInt(now.Format("20060102150405"), 10, 64)
	return NumberAllocation{Kind: kind, Number: v, Unmanaged: true}
}
