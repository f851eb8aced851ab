// Package apperr defines the error taxonomy shared by every layer and the
// failure policy applied to each kind of operation.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrServiceUnavailable marks a remote search engine or inference endpoint
	// that could not be reached or answered with an error.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrConfiguration marks a missing or invalid setting detected before any
	// network call was attempted.
	ErrConfiguration = errors.New("configuration error")

	ErrInvalidArgument = errors.New("invalid argument")
)

// Policy says what an operation does with a failure of a remote collaborator.
type Policy int

const (
	// Propagate returns the failure to the caller unmodified, without retry.
	Propagate Policy = iota
	// Suppress logs the failure and reports success.
	Suppress
	// Fallback replaces the failure with a fixed user-facing result.
	Fallback
)

func (p Policy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case Suppress:
		return "suppress"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Operation kinds covered by the policy table.
const (
	OpIndexBootstrap = "index.bootstrap"
	OpIndexWrite     = "index.write"
	OpIndexDelete    = "index.delete"
	OpIndexSearch    = "index.search"
	OpSearchResolve  = "search.resolve"
	OpGatewayDelete  = "gateway.delete_unindexed"
	OpInsights       = "insights.generate"
)

// Policies drives how each operation treats a failure; callers consult it
// through Decide rather than hard-coding the outcome.
//
//   - index bootstrap, write, delete and search failures propagate.
//   - a search hit that no longer resolves in the record store is suppressed.
//   - the write gateway suppresses ErrNotFound from the index when deleting a
//     note that was never indexed; every other delete failure propagates.
//   - insight generation falls back to a static message.
var Policies = map[string]Policy{
	OpIndexBootstrap: Propagate,
	OpIndexWrite:     Propagate,
	OpIndexDelete:    Propagate,
	OpIndexSearch:    Propagate,
	OpSearchResolve:  Suppress,
	OpGatewayDelete:  Suppress,
	OpInsights:       Fallback,
}

// scopes narrows a non-propagating policy to one error kind. Any other error
// raised by the operation propagates.
var scopes = map[string]error{
	OpSearchResolve: ErrNotFound,
	OpGatewayDelete: ErrNotFound,
}

// Decide returns the policy to apply to err raised by op. A nil error, an
// operation missing from Policies and an error outside the operation's scope
// all yield Propagate.
func Decide(op string, err error) Policy {
	if err == nil {
		return Propagate
	}
	p, ok := Policies[op]
	if !ok {
		return Propagate
	}
	if only, scoped := scopes[op]; scoped && p != Propagate && !errors.Is(err, only) {
		return Propagate
	}
	return p
}
