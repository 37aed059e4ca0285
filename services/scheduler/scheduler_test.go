package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/orbit/core"
	logsvc "github.com/trezcool/orbit/services/logger"
)

type countingPruner struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
}

func (p *countingPruner) Prune(maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.maxAge = maxAge
	return 1
}

func (p *countingPruner) snapshot() (int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, p.maxAge
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) RefreshKnown(context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return 0
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testConfig() *core.Config {
	conf := core.NewTestConfig()
	conf.Scheduler = core.SchedulerConfig{Enabled: true, PruneSpec: "@every 1s", RefreshSpec: "@every 1s"}
	conf.Upload.RetainFor = 30 * time.Minute
	return conf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		prune   string
		refresh string
		wantErr bool
	}{
		{name: "valid", prune: "@every 10m", refresh: "*/5 * * * *"},
		{name: "invalid prune spec", prune: "every now and then", refresh: "@every 5m", wantErr: true},
		{name: "invalid refresh spec", prune: "@every 10m", refresh: "61 * * * *", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := testConfig()
			conf.Scheduler.PruneSpec = tc.prune
			conf.Scheduler.RefreshSpec = tc.refresh

			s, err := New(conf, logsvc.NewDiscardLogger(), new(countingPruner), map[string]Refresher{
				"catalogs": new(countingRefresher), "analytics": new(countingRefresher),
			})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, s.Jobs())
		})
	}
}

func TestScheduler_runsJobs(t *testing.T) {
	pruner := new(countingPruner)
	refresher := new(countingRefresher)
	s, err := New(testConfig(), logsvc.NewDiscardLogger(), pruner, map[string]Refresher{"catalogs": refresher})
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool {
		calls, _ := pruner.snapshot()
		return calls > 0 && refresher.count() > 0
	}, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	_, maxAge := pruner.snapshot()
	assert.Equal(t, 30*time.Minute, maxAge)
}
