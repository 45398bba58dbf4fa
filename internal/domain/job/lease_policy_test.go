package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeasePolicy(t *testing.T) {
	policy, err := NewLeasePolicy(30 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, policy.Default())

	for _, bad := range []time.Duration{0, -time.Second} {
		policy, err := NewLeasePolicy(bad)
		require.ErrorIs(t, err, ErrInvalidDefaultLease)
		assert.Nil(t, policy)
	}
}

func TestLeasePolicy_Resolve(t *testing.T) {
	policy, err := NewLeasePolicy(30 * time.Second)
	require.NoError(t, err)

	tests := []struct {
		name        string
		request     time.Duration
		wantSeconds int
		wantSource  LeaseSource
	}{
		{
			name:        "explicit whole seconds",
			request:     45 * time.Second,
			wantSeconds: 45,
			wantSource:  LeaseSourceExplicit,
		},
		{
			name:        "fractional seconds truncate",
			request:     90*time.Second + 500*time.Millisecond,
			wantSeconds: 90,
			wantSource:  LeaseSourceExplicit,
		},
		{
			name:        "zero falls back to the default",
			request:     0,
			wantSeconds: 30,
			wantSource:  LeaseSourceDefault,
		},
		{
			name:        "sub-second request clamps to one second",
			request:     500 * time.Millisecond,
			wantSeconds: 1,
			wantSource:  LeaseSourceClamped,
		},
		{
			name:        "negative request clamps to one second",
			request:     -5 * time.Second,
			wantSeconds: 1,
			wantSource:  LeaseSourceClamped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := policy.Resolve(tt.request)
			assert.Equal(t, tt.wantSeconds, decision.Seconds)
			assert.Equal(t, tt.wantSource, decision.Source)
			assert.Equal(t, tt.request, decision.Requested)
			assert.Equal(t, tt.wantSource == LeaseSourceDefault, decision.UsedDefault())
			assert.Equal(t, tt.wantSource == LeaseSourceClamped, decision.Clamped())
		})
	}
}

func TestLeasePolicy_NilPolicy(t *testing.T) {
	var policy *LeasePolicy

	assert.Equal(t, time.Duration(0), policy.Default())

	decision := policy.Resolve(10 * time.Second)
	assert.Equal(t, 0, decision.Seconds)
	assert.Equal(t, LeaseSourceDefault, decision.Source)
	assert.Equal(t, 10*time.Second, decision.Requested)
}
