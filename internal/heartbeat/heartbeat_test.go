package heartbeat_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/slok/opstrack/internal/heartbeat"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/printer"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestBeat(t *testing.T) {
	tests := map[string]struct {
		open     []string
		pingErr  error
		expErr   bool
		expLines map[string][]string
	}{
		"A successful ping should not write anything.": {
			open:     []string{"backup-log"},
			expLines: map[string][]string{"backup-log": nil},
		},
		"A failed ping should be written on the backup log first.": {
			open:    []string{"operation-log", "restore-log", "backup-log"},
			pingErr: errors.New("ping returned HTTP 503"),
			expErr:  true,
			expLines: map[string][]string{
				"backup-log":    {"[10:00:00] Keepalive failed - ping returned HTTP 503"},
				"restore-log":   nil,
				"operation-log": nil,
			},
		},
		"A failed ping should fall back to the restore log.": {
			open:    []string{"operation-log", "restore-log"},
			pingErr: errors.New("boom"),
			expErr:  true,
			expLines: map[string][]string{
				"restore-log":   {"[10:00:00] Keepalive failed - boom"},
				"operation-log": nil,
			},
		},
		"A failed ping without open surfaces should only be logged.": {
			pingErr: errors.New("boom"),
			expErr:  true,
			expLines: map[string][]string{
				"backup-log":    nil,
				"restore-log":   nil,
				"operation-log": nil,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			rep := printer.NewMemoryReporter()
			logs, err := logagg.NewAggregator(logagg.AggregatorConfig{Reporter: rep, Clock: testclock.NewFakePassiveClock(t0)})
			require.NoError(err)
			for _, s := range test.open {
				logs.Reset(s)
			}

			hb, err := heartbeat.NewHeartbeat(heartbeat.HeartbeatConfig{
				Pinger: pingerFunc(func(context.Context) error { return test.pingErr }),
				Logs:   logs,
			})
			require.NoError(err)

			err = hb.Beat(context.Background())
			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}

			for surface, exp := range test.expLines {
				if exp == nil {
					assert.Empty(rep.Lines(surface), surface)
					continue
				}
				assert.Equal(exp, rep.Lines(surface), surface)
			}
		})
	}
}

func TestRunPingsEveryInterval(t *testing.T) {
	require := require.New(t)

	clk := testclock.NewFakeClock(t0)
	var pings atomic.Int32
	hb, err := heartbeat.NewHeartbeat(heartbeat.HeartbeatConfig{
		Pinger: pingerFunc(func(context.Context) error { pings.Add(1); return nil }),
		Clock:  clk,
	})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hb.Run(ctx) }()

	require.Eventually(clk.HasWaiters, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), pings.Load())

	clk.Step(heartbeat.DefaultInterval)
	require.Eventually(func() bool { return pings.Load() == 1 }, time.Second, 5*time.Millisecond)

	clk.Step(heartbeat.DefaultInterval)
	require.Eventually(func() bool { return pings.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop")
	}
}

func TestNewHeartbeatRequiresPinger(t *testing.T) {
	_, err := heartbeat.NewHeartbeat(heartbeat.HeartbeatConfig{})
	assert.Error(t, err)
}
