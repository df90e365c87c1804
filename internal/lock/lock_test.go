package lock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/slok/opstrack/internal/lock"
)

type fixture struct {
	lock    *lock.InteractionLock
	clock   *testclock.FakeClock
	backup  *lock.Gate
	confirm *lock.Gate
	page    *lock.Gate
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	f := fixture{
		clock:   testclock.NewFakeClock(time.Now()),
		backup:  lock.NewGate("backup", lock.ControlKindButton),
		confirm: lock.NewGate("confirm", lock.ControlKindCheckbox),
		page:    lock.NewGate("next-page", lock.ControlKindLink),
	}

	l, err := lock.NewInteractionLock(lock.InteractionLockConfig{
		Controls: []lock.Control{f.backup, f.confirm, f.page},
		Clock:    f.clock,
	})
	require.NoError(t, err)
	f.lock = l

	return f
}

func TestNewInteractionLockConfig(t *testing.T) {
	tests := map[string]struct {
		cfg    lock.InteractionLockConfig
		expErr bool
	}{
		"Empty config should use defaults.": {
			cfg: lock.InteractionLockConfig{},
		},
		"Duplicated controls should fail.": {
			cfg: lock.InteractionLockConfig{Controls: []lock.Control{
				lock.NewGate("a", lock.ControlKindButton),
				lock.NewGate("a", lock.ControlKindLink),
			}},
			expErr: true,
		},
		"Negative safety timeout should fail.": {
			cfg:    lock.InteractionLockConfig{SafetyTimeout: -time.Second},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := lock.NewInteractionLock(test.cfg)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInteractionLockAcquireRelease(t *testing.T) {
	f := newFixture(t)

	f.lock.Acquire()
	assert.True(t, f.lock.IsLocked())
	assert.False(t, f.backup.Enabled())
	assert.False(t, f.confirm.Enabled())
	assert.False(t, f.page.Enabled())
	assert.True(t, f.page.DefaultSuppressed())
	assert.False(t, f.backup.DefaultSuppressed())

	f.lock.Release()
	assert.False(t, f.lock.IsLocked())
	assert.True(t, f.backup.Enabled())
	assert.True(t, f.confirm.Enabled())
	assert.True(t, f.page.Enabled())
	assert.False(t, f.page.DefaultSuppressed())
	assert.False(t, f.clock.HasWaiters())
}

func TestInteractionLockReleaseWhenUnlockedIsNoop(t *testing.T) {
	f := newFixture(t)

	f.lock.Release()
	f.lock.Release()

	assert.False(t, f.lock.IsLocked())
	assert.True(t, f.backup.Enabled())
}

func TestInteractionLockSafetyRelease(t *testing.T) {
	f := newFixture(t)

	f.lock.Acquire()
	require.True(t, f.clock.HasWaiters())

	f.clock.Step(lock.DefaultSafetyTimeout - time.Second)
	assert.True(t, f.lock.IsLocked())

	f.clock.Step(time.Second)
	assert.Eventually(t, func() bool { return !f.lock.IsLocked() }, time.Second, 5*time.Millisecond)
	assert.True(t, f.backup.Enabled())
	assert.False(t, f.page.DefaultSuppressed())
}

func TestInteractionLockAcquireWhenLockedResetsSafetyTimer(t *testing.T) {
	f := newFixture(t)

	f.lock.Acquire()
	f.clock.Step(4 * time.Minute)
	f.lock.Acquire()

	// The first timer deadline passes, the lock must be kept.
	f.clock.Step(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.lock.IsLocked())

	// The reset timer deadline passes.
	f.clock.Step(3 * time.Minute)
	assert.Eventually(t, func() bool { return !f.lock.IsLocked() }, time.Second, 5*time.Millisecond)
}

func TestInteractionLockReleaseStopsSafetyTimer(t *testing.T) {
	f := newFixture(t)

	f.lock.Acquire()
	f.lock.Release()
	f.lock.Acquire()

	// Only the second acquire timer is alive.
	f.clock.Step(lock.DefaultSafetyTimeout - time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.lock.IsLocked())
}
