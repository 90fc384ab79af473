// Package scheduler runs the periodic jobs behind an interface so tests can drive ticks by hand.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Job is one tick of a periodic task. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// Scheduler registers periodic jobs.
type Scheduler interface {
	// Every runs job on a fixed interval. The returned func unregisters it.
	Every(name string, interval time.Duration, job Job) (cancel func(), err error)
	Start()
	Stop() error
}

// Manual is a Scheduler whose ticks are triggered explicitly.
type Manual struct {
	mu      sync.Mutex
	jobs    map[string]Job
	running bool
}

func NewManual() *Manual {
	return &Manual{jobs: make(map[string]Job)}
}

func (m *Manual) Every(name string, _ time.Duration, job Job) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = job
	return func() {
		m.mu.Lock()
		delete(m.jobs, name)
		m.mu.Unlock()
	}, nil
}

func (m *Manual) Start() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
}

func (m *Manual) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// Tick runs the named job once and reports whether it was registered.
func (m *Manual) Tick(ctx context.Context, name string) bool {
	m.mu.Lock()
	job, ok := m.jobs[name]
	m.mu.Unlock()
	if !ok {
		return false
	}
	job(ctx)
	return true
}

// Jobs lists registered job names.
func (m *Manual) Jobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.jobs))
	for n := range m.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
