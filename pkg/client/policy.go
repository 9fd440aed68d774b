package client

import (
	"fmt"
	"time"

	"github.com/Sternrassler/epoxy/pkg/normalize"
)

// Policy decides what a single endpoint failure does to the aggregation.
type Policy string

const (
	// PolicyFailFast aborts the whole aggregation on the first endpoint failure.
	PolicyFailFast Policy = "fail_any"

	// PolicyReplace substitutes an absent outcome for the failed endpoint.
	PolicyReplace Policy = "replace"
)

// ParsePolicy converts a caller supplied token into a Policy.
func ParsePolicy(token string) (Policy, error) {
	p := Policy(token)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, token)
	}
	return p, nil
}

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool {
	return p == PolicyFailFast || p == PolicyReplace
}

// String implements fmt.Stringer.
func (p Policy) String() string {
	return string(p)
}

// Outcome is the result of one endpoint fetch: either a normalized tree or
// absent.
type Outcome struct {
	value   normalize.Tree
	present bool
}

// Present wraps a normalized tree.
func Present(tree normalize.Tree) Outcome {
	return Outcome{value: tree, present: true}
}

// Absent marks an endpoint that failed under PolicyReplace.
func Absent() Outcome {
	return Outcome{}
}

// Value returns the normalized tree and whether the outcome holds one.
func (o Outcome) Value() (normalize.Tree, bool) {
	return o.value, o.present
}

// IsAbsent reports whether the endpoint failed.
func (o Outcome) IsAbsent() bool {
	return !o.present
}

// CallConfig is the per-aggregation configuration shared by every fetch of
// one request. It is built once before fan-out and passed by value, so no
// fetch can observe another request's settings.
type CallConfig struct {
	// Timeout bounds one endpoint call: connect, headers and body.
	Timeout time.Duration

	// UserAgent is sent with every upstream request.
	UserAgent string

	// MaxBodyBytes caps the accepted body size (0 = unlimited).
	MaxBodyBytes int64
}
