package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
)

// cachedWorkflow is an immutable workflow version with its graph prebuilt.
type cachedWorkflow struct {
	*store.Workflow
	graph *progress.Graph
}

// workflow returns a pinned workflow version. Versions never change once
// saved, so entries only leave the cache by expiry.
func (t *Tracker) workflow(ctx context.Context, id string, version int) (*cachedWorkflow, error) {
	key := "wf:" + store.WorkflowRef(id, version)
	if v, ok := t.cache.Get(key); ok {
		t.cfg.Metrics.CacheLookup(cacheWorkflow, true)
		return v.(*cachedWorkflow), nil
	}
	t.cfg.Metrics.CacheLookup(cacheWorkflow, false)

	wf, err := t.store.GetWorkflow(ctx, id, version)
	if err != nil {
		return nil, err
	}
	cw := &cachedWorkflow{Workflow: wf, graph: progress.FromDefinition(wf.Definition)}
	t.cache.SetDefault(key, cw)
	return cw, nil
}

// refData is a consistent snapshot of the reference tables. gen is the
// reference generation it was loaded under.
type refData struct {
	gen    uint64
	labels progress.LabelTable
	delays progress.DelayStatuses
}

// reference returns the label table and the delay set. Entries are keyed by
// generation, so a load that raced with an invalidation lands under a key no
// later call reads.
func (t *Tracker) reference(ctx context.Context) (refData, error) {
	ref := refData{gen: t.gen.Load()}
	suffix := ":" + strconv.FormatUint(ref.gen, 10)

	if v, ok := t.cache.Get(keyLabels + suffix); ok {
		t.cfg.Metrics.CacheLookup(cacheLabels, true)
		ref.labels = v.(progress.LabelTable)
	} else {
		t.cfg.Metrics.CacheLookup(cacheLabels, false)
		table, err := t.store.LabelTable(ctx)
		if err != nil {
			return refData{}, fmt.Errorf("load label table: %w", err)
		}
		ref.labels = table
		t.cache.SetDefault(keyLabels+suffix, ref.labels)
	}

	if v, ok := t.cache.Get(keyDelays + suffix); ok {
		t.cfg.Metrics.CacheLookup(cacheDelays, true)
		ref.delays = v.(progress.DelayStatuses)
	} else {
		t.cfg.Metrics.CacheLookup(cacheDelays, false)
		ids, err := t.store.DelayStatuses(ctx)
		if err != nil {
			return refData{}, fmt.Errorf("load delay statuses: %w", err)
		}
		ref.delays = progress.NewDelayStatuses(ids...)
		t.cache.SetDefault(keyDelays+suffix, ref.delays)
	}
	return ref, nil
}

// SetLabel stores a localized status title and drops cached labels and results.
func (t *Tracker) SetLabel(ctx context.Context, statusID, language, title string) error {
	if err := t.store.UpsertLabel(ctx, statusID, language, title); err != nil {
		return err
	}
	t.invalidateReference()
	return nil
}

// SetDelayStatus marks or unmarks a delay status and drops cached results.
func (t *Tracker) SetDelayStatus(ctx context.Context, statusID string, delay bool) error {
	if err := t.store.SetDelayStatus(ctx, statusID, delay); err != nil {
		return err
	}
	t.invalidateReference()
	return nil
}

// invalidateReference starts a new reference generation and drops the
// entries of older ones. Results embed titles and classification, so they
// carry the generation in their key as well.
func (t *Tracker) invalidateReference() {
	t.gen.Add(1)
	for k := range t.cache.Items() {
		if strings.HasPrefix(k, "result:") || strings.HasPrefix(k, keyLabels+":") || strings.HasPrefix(k, keyDelays+":") {
			t.cache.Delete(k)
		}
	}
}
