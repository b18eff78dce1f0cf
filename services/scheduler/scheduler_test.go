package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
)

type syncerMock struct {
	calls int
	err   error
}

func (m *syncerMock) SyncCourseCounts(context.Context) error {
	m.calls++
	return m.err
}

type loggerMock struct {
	mu     sync.Mutex
	errors []string
}

func (l *loggerMock) Debug(string, ...interface{}) {}
func (l *loggerMock) Info(string, ...interface{})  {}
func (l *loggerMock) Warn(string, ...interface{})  {}
func (l *loggerMock) Fatal(string, ...interface{}) {}
func (l *loggerMock) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "every", spec: "@every 15m"},
		{name: "cron expression", spec: "*/5 * * * *"},
		{name: "invalid", spec: "lol", wantErr: true},
		{name: "empty", spec: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Scheduler.CategorySyncSpec = tt.spec
			s, err := New(conf, new(syncerMock), new(loggerMock))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, s.Entries())
		})
	}
}

func TestScheduler_job(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Scheduler.CategorySyncSpec = "@every 1h"
	logger := new(loggerMock)
	syncer := new(syncerMock)

	s, err := New(conf, syncer, logger)
	require.NoError(t, err)

	run := s.job("sync", syncer.SyncCourseCounts)
	run()
	assert.Equal(t, 1, syncer.calls)
	assert.Empty(t, logger.errors)

	syncer.err = errors.New("db down")
	run()
	assert.Equal(t, 2, syncer.calls)
	if assert.Len(t, logger.errors, 1) {
		assert.Contains(t, logger.errors[0], "db down")
	}

	s.Start()
	assert.NoError(t, s.Stop(context.Background()))
}
