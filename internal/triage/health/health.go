// Package health provides system health monitoring and status reporting.
package health

import (
	"context"
	"sync"
	"time"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// BranchHealth contains monitor state for one watched branch.
type BranchHealth struct {
	Branch         string       `json:"branch"`
	Status         SystemStatus `json:"status"`
	HeadPushID     int          `json:"head_push_id"`
	LastClassified string       `json:"last_classified"`
	LastError      string       `json:"last_error,omitempty"`
	LastRun        time.Time    `json:"last_run"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Components   map[string]string       `json:"components"`
	Branches     map[string]BranchHealth `json:"branches"`
}

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Monitor aggregates dependency checks and per-branch monitor state.
type Monitor struct {
	staleAfter time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	branches map[string]BranchHealth
}

// NewMonitor creates a monitor. A branch whose last run is older than
// staleAfter degrades the system status.
func NewMonitor(staleAfter time.Duration) *Monitor {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Monitor{
		staleAfter: staleAfter,
		checkers:   map[string]Checker{},
		branches:   map[string]BranchHealth{},
	}
}

// RegisterChecker adds a named dependency probe.
func (m *Monitor) RegisterChecker(name string, fn Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = fn
}

// ReportRun records the outcome of one monitor cycle for a branch.
func (m *Monitor) ReportRun(branch string, headID int, rev string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := BranchHealth{
		Branch:         branch,
		Status:         StatusHealthy,
		HeadPushID:     headID,
		LastClassified: rev,
		LastRun:        time.Now().UTC(),
	}
	if err != nil {
		h.Status = StatusDegraded
		h.LastError = err.Error()
		// Keep the last good classification visible through errors.
		if prev, ok := m.branches[branch]; ok && rev == "" {
			h.LastClassified = prev.LastClassified
		}
	}
	m.branches[branch] = h
}

// CheckHealth runs every dependency probe and folds in branch state.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, fn := range m.checkers {
		checkers[name] = fn
	}
	branches := make(map[string]BranchHealth, len(m.branches))
	for name, h := range m.branches {
		branches[name] = h
	}
	m.mu.RUnlock()

	report := Report{
		SystemStatus: StatusHealthy,
		Components:   map[string]string{},
		Branches:     branches,
	}

	for name, fn := range checkers {
		if err := fn(ctx); err != nil {
			report.Components[name] = err.Error()
			report.SystemStatus = StatusCritical
		} else {
			report.Components[name] = string(StatusHealthy)
		}
	}

	now := time.Now().UTC()
	for name, h := range branches {
		if h.Status == StatusHealthy && now.Sub(h.LastRun) > m.staleAfter {
			h.Status = StatusDegraded
			branches[name] = h
		}
		if h.Status != StatusHealthy && report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
	}

	return report
}
