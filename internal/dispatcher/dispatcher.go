// Package dispatcher implements the WorkerPool placement algorithm: given
// required context tags, it finds the best worker and context-id tuple to
// host a new job under affinity, capacity, and utilization constraints.
package dispatcher

import (
	"fmt"
	"sort"

	"github.com/scribear/scribear/internal/errs"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/manager"
)

// Worker is the subset of WorkerManager the dispatcher needs.
type Worker interface {
	ID() string
	Utilization() float64
	ActiveContextIDs() map[string]struct{}
	RegisterJob(contextIDs []string, periodMs int64, jobImplName string, jobImplConfig []byte) (*manager.JobHandle, error)
	SendTerminate() error
	WaitShutdown() error
}

// Dispatcher places jobs across a fixed set of workers.
type Dispatcher struct {
	workers []Worker
	specs   map[string]jobs.ContextSpec
	// Cluster-wide active counts per context id are not stored here:
	// clusterActiveCounts recomputes them from each worker's own
	// ActiveContextIDs at placement time rather than caching them, since
	// the spec requires reading live state (§5: readers see consistent
	// snapshots of the main loop).
}

// New constructs a Dispatcher over the given workers and context specs.
func New(workers []Worker, specs []jobs.ContextSpec) *Dispatcher {
	specByUID := make(map[string]jobs.ContextSpec, len(specs))
	for _, s := range specs {
		specByUID[s.UID] = s
	}
	return &Dispatcher{workers: workers, specs: specByUID}
}

// RegisterJob places a job requiring requiredTags and forwards the
// registration to the chosen worker.
func (d *Dispatcher) RegisterJob(requiredTags []string, periodMs int64, jobImplName string, jobImplConfig []byte) (*manager.JobHandle, error) {
	if len(requiredTags) == 0 {
		return d.registerOnLeastUtilized(periodMs, jobImplName, jobImplConfig)
	}

	tagSets, err := d.expandTags(requiredTags)
	if err != nil {
		return nil, err
	}

	tuples := cartesianProduct(tagSets)

	var compatible [][]string
	for _, tuple := range tuples {
		if d.internallyCompatible(tuple) {
			compatible = append(compatible, tuple)
		}
	}

	type candidate struct {
		worker Worker
		tuple  []string
		score  float64
	}
	var candidates []candidate

	clusterCounts := d.clusterActiveCounts()

	for _, w := range d.workers {
		active := w.ActiveContextIDs()
		for _, tuple := range compatible {
			if !d.placeable(w, active, tuple, clusterCounts) {
				continue
			}
			score := 1 - w.Utilization() - d.creationCost(active, tuple)
			candidates = append(candidates, candidate{worker: w, tuple: tuple, score: score})
		}
	}

	if len(candidates) == 0 {
		return nil, errs.New(errs.KindDispatcher, fmt.Errorf("dispatcher: no placement satisfies required tags %v", requiredTags))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].worker.ID() < candidates[j].worker.ID()
	})

	best := candidates[0]
	return best.worker.RegisterJob(best.tuple, periodMs, jobImplName, jobImplConfig)
}

func (d *Dispatcher) registerOnLeastUtilized(periodMs int64, jobImplName string, jobImplConfig []byte) (*manager.JobHandle, error) {
	if len(d.workers) == 0 {
		return nil, errs.New(errs.KindDispatcher, fmt.Errorf("dispatcher: no workers available"))
	}
	best := d.workers[0]
	for _, w := range d.workers[1:] {
		if w.Utilization() < best.Utilization() {
			best = w
		}
	}
	return best.RegisterJob(nil, periodMs, jobImplName, jobImplConfig)
}

// expandTags maps each required tag to the set of context ids carrying
// it. Any tag expanding to empty fails with a not-found error.
func (d *Dispatcher) expandTags(requiredTags []string) ([][]string, error) {
	sets := make([][]string, 0, len(requiredTags))
	for _, tag := range requiredTags {
		var ids []string
		for uid, spec := range d.specs {
			if spec.HasTag(tag) {
				ids = append(ids, uid)
			}
		}
		sort.Strings(ids)
		if len(ids) == 0 {
			return nil, errs.New(errs.KindDispatcher, fmt.Errorf("dispatcher: tag %q matches no context", tag))
		}
		sets = append(sets, ids)
	}
	return sets, nil
}

func cartesianProduct(sets [][]string) [][]string {
	result := [][]string{{}}
	for _, set := range sets {
		var next [][]string
		for _, prefix := range result {
			for _, id := range set {
				tuple := make([]string, len(prefix)+1)
				copy(tuple, prefix)
				tuple[len(prefix)] = id
				next = append(next, tuple)
			}
		}
		result = next
	}
	return result
}

// internallyCompatible reports whether no element's negative_affinity
// appears among the tags of the other elements in the tuple (the self
// element is skipped when computing "other tags", per the spec's
// resolution of the ambiguous source behavior).
func (d *Dispatcher) internallyCompatible(tuple []string) bool {
	for i, id := range tuple {
		spec, ok := d.specs[id]
		if !ok || spec.NegativeAffinity == nil {
			continue
		}
		for j, otherID := range tuple {
			if i == j {
				continue
			}
			other, ok := d.specs[otherID]
			if !ok {
				continue
			}
			if other.HasTag(*spec.NegativeAffinity) {
				return false
			}
		}
	}
	return true
}

func (d *Dispatcher) clusterActiveCounts() map[string]int {
	counts := make(map[string]int)
	for _, w := range d.workers {
		for id := range w.ActiveContextIDs() {
			counts[id]++
		}
	}
	return counts
}

// placeable reports whether every context id in tuple can be placed on w.
func (d *Dispatcher) placeable(w Worker, active map[string]struct{}, tuple []string, clusterCounts map[string]int) bool {
	for _, id := range tuple {
		spec, ok := d.specs[id]
		if !ok {
			return false
		}

		if _, already := active[id]; !already {
			if !spec.Unlimited() && clusterCounts[id] >= spec.MaxInstances {
				return false
			}
		}

		for activeID := range active {
			activeSpec, ok := d.specs[activeID]
			if !ok {
				continue
			}
			if spec.NegativeAffinity != nil && activeSpec.HasTag(*spec.NegativeAffinity) {
				return false
			}
			if activeSpec.NegativeAffinity != nil && spec.HasTag(*activeSpec.NegativeAffinity) {
				return false
			}
		}
	}
	return true
}

// creationCost sums spec.creation_cost over distinct ids in tuple not
// already active on w.
func (d *Dispatcher) creationCost(active map[string]struct{}, tuple []string) float64 {
	seen := make(map[string]struct{})
	var total float64
	for _, id := range tuple {
		if _, already := active[id]; already {
			continue
		}
		if _, counted := seen[id]; counted {
			continue
		}
		seen[id] = struct{}{}
		total += d.specs[id].CreationCost
	}
	return total
}

// Shutdown sends TERMINATE to every worker and waits for all to join.
func (d *Dispatcher) Shutdown() error {
	for _, w := range d.workers {
		_ = w.SendTerminate()
	}
	var firstErr error
	for _, w := range d.workers {
		if err := w.WaitShutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
