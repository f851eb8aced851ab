package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicies(t *testing.T) {
	want := map[string]Policy{
		OpIndexBootstrap: Propagate,
		OpIndexWrite:     Propagate,
		OpIndexDelete:    Propagate,
		OpIndexSearch:    Propagate,
		OpSearchResolve:  Suppress,
		OpGatewayDelete:  Suppress,
		OpInsights:       Fallback,
	}
	assert.Equal(t, want, Policies)
}

func TestDecide(t *testing.T) {
	unavailable := fmt.Errorf("search: delete: %w", ErrServiceUnavailable)
	missing := fmt.Errorf("search: delete: %w", ErrNotFound)

	tests := []struct {
		name string
		op   string
		err  error
		want Policy
	}{
		{"nil error", OpInsights, nil, Propagate},
		{"unknown operation", "cache.evict", missing, Propagate},
		{"propagating op", OpIndexWrite, unavailable, Propagate},
		{"gateway delete of unindexed note", OpGatewayDelete, missing, Suppress},
		{"gateway delete with engine down", OpGatewayDelete, unavailable, Propagate},
		{"stale hit", OpSearchResolve, missing, Suppress},
		{"insights failure", OpInsights, unavailable, Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.op, tt.err))
		})
	}
}

func TestDecide_FollowsTable(t *testing.T) {
	saved := Policies[OpInsights]
	t.Cleanup(func() { Policies[OpInsights] = saved })

	Policies[OpInsights] = Propagate
	assert.Equal(t, Propagate, Decide(OpInsights, ErrServiceUnavailable))
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "propagate", Propagate.String())
	assert.Equal(t, "suppress", Suppress.String())
	assert.Equal(t, "fallback", Fallback.String())
	assert.Equal(t, "unknown", Policy(42).String())
}

func TestSentinelsSurviveDoubleWrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("search: index: %w: %w", ErrServiceUnavailable, cause)

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}
