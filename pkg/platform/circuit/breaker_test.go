package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	fail     bool
	wantOpen bool
	opened   bool
	closed   bool
}

func TestBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		steps     []step
	}{
		{
			name:     "opens on the third consecutive failure",
			failures: 3, successes: 1,
			steps: []step{
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
				{fail: true, wantOpen: true},
			},
		},
		{
			name:     "a success clears the failure streak",
			failures: 3, successes: 1,
			steps: []step{
				{fail: true},
				{fail: true},
				{},
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
			},
		},
		{
			name:     "needs consecutive successes to close",
			failures: 1, successes: 2,
			steps: []step{
				{fail: true, wantOpen: true, opened: true},
				{wantOpen: true},
				{fail: true, wantOpen: true},
				{wantOpen: true},
				{closed: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("model-extraction", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			for i, s := range tt.steps {
				var change Change
				if s.fail {
					_, change = b.RecordFailure()
				} else {
					_, change = b.RecordSuccess()
				}
				require.Equal(t, s.wantOpen, b.IsOpen(), "step %d open", i)
				assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
				assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
			}
		})
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := New("changefeed", WithFailureThreshold(1))
	assert.Equal(t, "changefeed", b.Name())
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	require.True(t, b.IsOpen())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_AllowAdmitsProbeAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := New("model-extraction",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(59 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow())

	// A failed probe restarts the cooldown.
	b.RecordFailure()
	assert.False(t, b.Allow())
}
