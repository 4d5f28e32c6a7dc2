// Package tracker serves case progress: it loads a case and its workflow from
// the store, resolves progress and keeps the read-mostly inputs cached.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/metrics"
	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/internal/sla"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Defaults applied by NewTracker.
const (
	DefaultLanguage = "th"
	DefaultCacheTTL = 30 * time.Second
)

// Cache names reported to metrics.
const (
	cacheWorkflow = "workflow"
	cacheLabels   = "labels"
	cacheDelays   = "delays"
	cacheResult   = "result"
)

const (
	keyLabels = "labels"
	keyDelays = "delays"
)

// Config tunes a Tracker. Zero values fall back to defaults.
type Config struct {
	Language    string
	BypassDepth int
	CacheTTL    time.Duration
	// DelayRule is an extra delay test on top of the stored delay statuses.
	DelayRule func(progress.Node) bool
	// SLA annotates current and completed steps; nil disables it.
	SLA     *sla.Evaluator
	Metrics *metrics.Metrics
}

// CaseProgress is the resolved progress of a case or an inline payload.
type CaseProgress struct {
	CaseID          string            `json:"caseId,omitempty"`
	WorkflowID      string            `json:"workflowId,omitempty"`
	WorkflowVersion int               `json:"workflowVersion,omitempty"`
	Status          schema.CaseStatus `json:"status,omitempty"`
	Language        string            `json:"language"`
	progress.Result
	Summary    progress.Summary `json:"summary"`
	ResolvedAt time.Time        `json:"resolvedAt"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	store  store.Store
	hub    streaming.EventHub
	cfg    Config
	cache  *gocache.Cache
	logger *slog.Logger
	now    func() time.Time
	// gen counts reference data changes; it is part of every cache key that
	// depends on labels or delay statuses.
	gen atomic.Uint64
}

// NewTracker creates a Tracker. hub may be nil.
func NewTracker(s store.Store, hub streaming.EventHub, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.BypassDepth < 1 {
		cfg.BypassDepth = 1
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  s,
		hub:    hub,
		cfg:    cfg,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CaseProgress resolves the progress of a stored case. An empty workflow
// yields the (empty) progress together with an EMPTY_WORKFLOW error.
func (t *Tracker) CaseProgress(ctx context.Context, caseID, language string) (*CaseProgress, error) {
	start := time.Now()
	ctx = logging.WithCaseID(ctx, caseID)

	c, err := t.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithWorkflowID(ctx, c.WorkflowID)

	wf, err := t.workflow(ctx, c.WorkflowID, c.WorkflowVersion)
	if err != nil {
		return nil, err
	}
	records, err := t.store.ListTimingRecords(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list timing records: %w", err)
	}
	ref, err := t.reference(ctx)
	if err != nil {
		return nil, err
	}

	language = t.language(language)
	var current *schema.CurrentStage
	if c.CurrentNodeID != "" {
		current = &schema.CurrentStage{NodeID: c.CurrentNodeID}
	}

	key := resultKey(ref.gen, wf.Ref(), c.CurrentNodeID, records, language)
	res, hit := t.cachedResult(key)
	if !hit {
		res = progress.Resolve(progress.Input{
			Graph:    wf.graph,
			Current:  current,
			Timings:  records,
			Labels:   ref.labels,
			Language: language,
		}, t.options(ref.delays))
		t.cache.SetDefault(key, res)
	}

	out, err := t.finish(ctx, res, language)
	if err != nil {
		return nil, err
	}
	out.CaseID = c.ID
	out.WorkflowID = c.WorkflowID
	out.WorkflowVersion = c.WorkflowVersion
	out.Status = c.Status

	t.cfg.Metrics.ObserveResolution(metrics.SourceCase, time.Since(start))
	if c.CurrentNodeID != "" && out.EffectiveCurrent == "" {
		logging.LogWith(ctx, t.logger).Warn("stage pointer does not resolve to a step",
			"current_node_id", c.CurrentNodeID)
	}
	return out, emptyErr(out)
}

// Inline resolves a payload that carries its own graph, pointer and timings.
// Labels and delay statuses still come from the store when one is configured.
func (t *Tracker) Inline(ctx context.Context, p *schema.SOPPayload, language string) (*CaseProgress, error) {
	start := time.Now()

	var ref refData
	if t.store != nil {
		var err error
		if ref, err = t.reference(ctx); err != nil {
			return nil, err
		}
	}

	if language == "" && p != nil {
		language = p.Language
	}
	language = t.language(language)

	in := progress.Input{Labels: ref.labels, Language: language}
	if p != nil {
		in.Graph = progress.FromDefinition(p.Definition())
		in.Current = p.CurrentStage
		in.Timings = p.SLATimelines
	}
	res := progress.Resolve(in, t.options(ref.delays))

	out, err := t.finish(ctx, res, language)
	if err != nil {
		return nil, err
	}
	t.cfg.Metrics.ObserveResolution(metrics.SourceInline, time.Since(start))
	return out, emptyErr(out)
}

func (t *Tracker) finish(ctx context.Context, res progress.Result, language string) (*CaseProgress, error) {
	now := t.now()
	// Results may be shared through the cache; hand out a private step slice.
	res.Steps = slices.Clone(res.Steps)
	if t.cfg.SLA != nil {
		steps, err := t.cfg.SLA.Annotate(ctx, res.Steps, now)
		if err != nil {
			return nil, err
		}
		res.Steps = steps
	}
	return &CaseProgress{
		Language:   language,
		Result:     res,
		Summary:    progress.Summarize(res.Steps),
		ResolvedAt: now,
	}, nil
}

func emptyErr(p *CaseProgress) error {
	if !p.Empty {
		return nil
	}
	return schema.NewError(schema.ErrCodeEmptyWorkflow, "workflow definition has no nodes").
		WithDetails(map[string]any{"workflow_id": p.WorkflowID})
}

func (t *Tracker) options(delays progress.DelayStatuses) progress.Options {
	return progress.Options{
		Classifier:  t.classifier(delays),
		BypassDepth: t.cfg.BypassDepth,
	}
}

func (t *Tracker) classifier(delays progress.DelayStatuses) progress.Classifier {
	return progress.Classifier{Delay: delays, DelayRule: t.cfg.DelayRule}
}

func (t *Tracker) language(lang string) string {
	if lang == "" {
		return t.cfg.Language
	}
	return lang
}

// resultKey changes whenever the reference generation, the graph version,
// the pointer, the language or the timing history changes. Completing a
// record adds its duration, so durations are part of the key too.
func resultKey(gen uint64, ref, nodeID string, records []schema.TimingRecord, language string) string {
	var last, durations int64
	if n := len(records); n > 0 {
		last = records[n-1].CreatedAt.UnixNano()
	}
	completed := 0
	for _, r := range records {
		if r.DurationSeconds != nil {
			completed++
			durations += *r.DurationSeconds
		}
	}
	return "result:" + strconv.FormatUint(gen, 10) + ":" + ref + ":" + nodeID + ":" +
		strconv.Itoa(len(records)) + ":" + strconv.FormatInt(last, 10) + ":" +
		strconv.Itoa(completed) + ":" + strconv.FormatInt(durations, 10) + ":" + language
}

func (t *Tracker) cachedResult(key string) (progress.Result, bool) {
	v, ok := t.cache.Get(key)
	t.cfg.Metrics.CacheLookup(cacheResult, ok)
	if !ok {
		return progress.Result{}, false
	}
	return v.(progress.Result), true
}
