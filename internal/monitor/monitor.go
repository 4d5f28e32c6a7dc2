// Package monitor periodically checks open cases against their SLAs and
// publishes at-risk and breach events.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/metrics"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// DefaultSchedule runs a sweep every five minutes.
const DefaultSchedule = "*/5 * * * *"

// ProgressSource resolves the progress of a stored case. Satisfied by
// *tracker.Tracker.
type ProgressSource interface {
	CaseProgress(ctx context.Context, caseID, language string) (*tracker.CaseProgress, error)
}

// Report summarizes one sweep.
type Report struct {
	Cases     int  `json:"cases"`
	AtRisk    int  `json:"at_risk"`
	Breached  int  `json:"breached"`
	Published int  `json:"published"`
	Errors    int  `json:"errors"`
	Skipped   bool `json:"skipped,omitempty"`
}

func (r *Report) add(o Report) {
	r.AtRisk += o.AtRisk
	r.Breached += o.Breached
	r.Published += o.Published
	r.Errors += o.Errors
}

// Monitor runs SLA sweeps on a cron schedule. A status is published once per
// case and step; it is published again only after it changes.
type Monitor struct {
	store    store.Store
	source   ProgressSource
	hub      streaming.EventHub
	metrics  *metrics.Metrics
	schedule string
	workers  int
	logger   *slog.Logger

	running atomic.Bool

	mu   sync.Mutex
	cron *cron.Cron
	done chan struct{} // closed by Stop; ends the ctx watcher of the current run

	notifiedMu sync.Mutex
	notified   map[string]map[string]schema.SLAStatus // case_id -> node_id -> last published status
}

// NewMonitor creates a Monitor. An empty schedule means DefaultSchedule; hub
// and m may be nil.
func NewMonitor(s store.Store, source ProgressSource, hub streaming.EventHub, m *metrics.Metrics, schedule string, logger *slog.Logger) (*Monitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse monitor schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:    s,
		source:   source,
		hub:      hub,
		metrics:  m,
		schedule: schedule,
		workers:  DefaultWorkers,
		logger:   logger,
		notified: make(map[string]map[string]schema.SLAStatus),
	}, nil
}

// SetWorkers sets how many cases a sweep checks concurrently. Values below 1
// mean one at a time. Call before Start.
func (m *Monitor) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	m.workers = n
}

// Start schedules sweeps until ctx is done or Stop is called. Cancelling ctx
// stops the schedule the same way Stop does.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return fmt.Errorf("monitor already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() {
		if _, err := m.Sweep(ctx); err != nil {
			m.logger.Error("sla sweep failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("schedule sla sweep: %w", err)
	}
	c.Start()
	m.cron = c
	done := make(chan struct{})
	m.done = done

	go func() {
		select {
		case <-ctx.Done():
			m.stopRun(c)
		case <-done:
		}
	}()

	m.logger.Info("monitor started", slog.String("schedule", m.schedule))
	return nil
}

// Stop waits for a running sweep to finish and stops the schedule.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return nil
}

// stopRun stops the schedule only if c is still the active one, so a watcher
// left over from an earlier run cannot stop a restarted monitor.
func (m *Monitor) stopRun(c *cron.Cron) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron == c {
		m.stopLocked()
	}
}

func (m *Monitor) stopLocked() {
	if m.cron == nil {
		return
	}
	close(m.done)
	<-m.cron.Stop().Done()
	m.cron = nil
	m.done = nil

	m.logger.Info("monitor stopped")
}

// started reports whether a schedule is active.
func (m *Monitor) started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cron != nil
}

// NextRun returns the next sweep time after from.
func (m *Monitor) NextRun(from time.Time) time.Time {
	schedule, _ := cron.ParseStandard(m.schedule)
	return schedule.Next(from)
}

// Sweep checks every open case once. A sweep that starts while another is
// running is skipped.
func (m *Monitor) Sweep(ctx context.Context) (Report, error) {
	var report Report
	if !m.running.CompareAndSwap(false, true) {
		report.Skipped = true
		return report, nil
	}
	defer m.running.Store(false)

	cases, err := m.store.ListOpenCases(ctx)
	if err != nil {
		return report, fmt.Errorf("list open cases: %w", err)
	}
	report.Cases = len(cases)
	m.metrics.SetOpenCases(len(cases))
	m.forgetClosed(cases)

	var mu sync.Mutex
	pool := newCheckPool(m.workers, m.logger)
	for _, c := range cases {
		err := pool.Go(ctx, func() {
			delta := m.checkCase(logging.WithCaseID(ctx, c.ID), c)
			mu.Lock()
			report.add(delta)
			mu.Unlock()
		})
		if err != nil {
			report.Errors += pool.Wait()
			return report, err
		}
	}
	report.Errors += pool.Wait()

	m.logger.Info("sla sweep finished",
		slog.Int("cases", report.Cases),
		slog.Int("at_risk", report.AtRisk),
		slog.Int("breached", report.Breached),
		slog.Int("published", report.Published),
	)
	return report, nil
}

// checkCase returns the counts contributed by one case.
func (m *Monitor) checkCase(ctx context.Context, c *store.Case) Report {
	var report Report
	p, err := m.source.CaseProgress(ctx, c.ID, "")
	if err != nil {
		if !schema.IsCode(err, schema.ErrCodeEmptyWorkflow) {
			report.Errors++
			logging.LogWith(ctx, m.logger).Warn("resolve case progress", slog.String("error", err.Error()))
		}
		return report
	}

	for _, step := range p.Steps {
		if !step.Current || step.SLA == nil {
			continue
		}
		var eventType string
		switch step.SLA.Status {
		case schema.SLAStatusAtRisk:
			report.AtRisk++
			eventType = schema.EventSLAAtRisk
		case schema.SLAStatusBreached:
			report.Breached++
			eventType = schema.EventSLABreached
		}
		if !m.markNotified(c.ID, step.ID, step.SLA.Status) || eventType == "" {
			continue
		}
		m.publish(logging.WithNodeID(ctx, step.ID), c, step, eventType)
		report.Published++
	}
	return report
}

// markNotified records status for the case step and reports whether it differs
// from the last recorded one.
func (m *Monitor) markNotified(caseID, nodeID string, status schema.SLAStatus) bool {
	m.notifiedMu.Lock()
	defer m.notifiedMu.Unlock()
	steps := m.notified[caseID]
	if steps == nil {
		steps = make(map[string]schema.SLAStatus)
		m.notified[caseID] = steps
	}
	if steps[nodeID] == status {
		return false
	}
	steps[nodeID] = status
	return true
}

// forgetClosed drops notification state for cases that are no longer open.
func (m *Monitor) forgetClosed(open []*store.Case) {
	ids := make(map[string]struct{}, len(open))
	for _, c := range open {
		ids[c.ID] = struct{}{}
	}
	m.notifiedMu.Lock()
	defer m.notifiedMu.Unlock()
	for id := range m.notified {
		if _, ok := ids[id]; !ok {
			delete(m.notified, id)
		}
	}
}

func (m *Monitor) publish(ctx context.Context, c *store.Case, step schema.ProgressStep, eventType string) {
	payload := map[string]any{
		"status":            step.SLA.Status,
		"status_id":         step.StatusID,
		"elapsed_minutes":   step.SLA.ElapsedMinutes,
		"remaining_minutes": step.SLA.RemainingMinutes,
		"due_at":            step.SLA.DueAt,
	}
	m.metrics.SLAEvent(string(step.SLA.Status))

	raw, _ := json.Marshal(payload)
	if err := m.store.AppendEvent(ctx, &store.Event{
		CaseID:  c.ID,
		Type:    eventType,
		NodeID:  step.ID,
		Payload: raw,
	}); err != nil {
		logging.LogWith(ctx, m.logger).Error("append sla event", slog.String("error", err.Error()))
	}

	if m.hub == nil {
		return
	}
	if err := m.hub.Publish(ctx, streaming.StreamEvent{
		CaseID:     c.ID,
		WorkflowID: c.WorkflowID,
		NodeID:     step.ID,
		EventType:  eventType,
		Payload:    payload,
	}); err != nil {
		logging.LogWith(ctx, m.logger).Warn("publish sla event", slog.String("error", err.Error()))
	}
}
