package buildmetrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.AddTaskScheduled()
	m.AddRuleMatched()
	m.AddDepdbHit()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestCountersAccumulate(t *testing.T) {
	m := New()
	m.AddTaskScheduled()
	m.AddTaskScheduled()
	m.AddTaskExecuted()
	m.AddRuleMatched()
	m.AddDepdbHit()
	m.AddDepdbHit()
	m.AddDepdbMiss()
	m.AddChildProcess()
	m.AddTargetFailed()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TasksScheduled)
	assert.Equal(t, int64(1), snap.TasksExecuted)
	assert.Equal(t, int64(1), snap.RulesMatched)
	assert.Equal(t, int64(2), snap.DepdbHits)
	assert.Equal(t, int64(1), snap.DepdbMisses)
	assert.Equal(t, int64(1), snap.ChildProcesses)
	assert.Equal(t, int64(1), snap.TargetsFailed)
}

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddTaskScheduled()
			m.AddDepdbHit()
		}()
	}
	wg.Wait()
	snap := m.Snapshot()
	assert.Equal(t, int64(100), snap.TasksScheduled)
	assert.Equal(t, int64(100), snap.DepdbHits)
}
