package traverse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errClientPanic = errors.New("node client panicked")

// Traverser discovers every descendant of a root node. A Traverser may run several
// traversals at once; each run keeps its own state.
type Traverser struct {
	client  NodeClient
	options Options
}

// New constructs a Traverser around client.
func New(client NodeClient, options Options) *Traverser {
	return &Traverser{client: client, options: options.normalized()}
}

// expansionResult is the batch a worker publishes for one expansion task.
type expansionResult struct {
	parent     NodeRef
	children   []NodeDescriptor
	failures   []NodeFailure
	tagFetches int
	fatal      error
	cancelled  bool
}

// run holds the state of a single traversal. Everything except the atomics is owned by the
// coordinating goroutine.
type run struct {
	id       string
	root     NodeRef
	client   NodeClient
	options  Options
	logger   *zap.Logger
	started  time.Time
	visited  map[NodeRef]struct{}
	nodes    []NodeDescriptor
	failures []NodeFailure
	stats    Stats

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (traverser *Traverser) newRun(root NodeRef) *run {
	runID := uuid.NewString()
	return &run{
		id:      runID,
		root:    root,
		client:  traverser.client,
		options: traverser.options,
		logger:  traverser.options.Logger.With(zap.String("run", runID), zap.String("root", string(root))),
		started: time.Now(),
		visited: map[NodeRef]struct{}{root: {}},
	}
}

func (traverser *Traverser) validate(root NodeRef) error {
	if traverser == nil || traverser.client == nil {
		return errNilClient
	}
	if strings.TrimSpace(string(root)) == "" {
		return errEmptyRoot
	}
	return nil
}

// Traverse expands root and all of its expandable descendants with the worker pool and returns
// every discovered descendant. Node-level failures are reported in Result.Failures. A fatal client
// error aborts the run and is returned with an empty Result. Cancelling ctx stops the workers and
// returns the nodes discovered so far together with an error wrapping ErrCancelled.
func (traverser *Traverser) Traverse(ctx context.Context, root NodeRef) (Result, error) {
	if err := traverser.validate(root); err != nil {
		return Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	current := traverser.newRun(root)
	current.logger.Debug("traversal started", zap.Int("workers", traverser.options.Workers))

	workerContext, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	queue := newFrontierQueue()
	results := make(chan expansionResult, traverser.options.Workers)

	var workers errgroup.Group
	for index := 0; index < traverser.options.Workers; index++ {
		workers.Go(func() error {
			current.work(workerContext, queue, results)
			return nil
		})
	}

	current.observeQueueLength(queue.push(root))
	pending := 1

	var abortErr error
	for {
		batch, received := current.receive(ctx, results)
		if received {
			pending--
			if pending < 0 {
				panic(fmt.Sprintf("traverse: pending expansions went negative after result for %s", batch.parent))
			}
			if batch.fatal != nil {
				abortErr = batch.fatal
				break
			}
			if !batch.cancelled {
				for _, ref := range current.fold(batch) {
					current.observeQueueLength(queue.push(ref))
					pending++
				}
			}
		}
		if ctx.Err() != nil {
			abortErr = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			break
		}
		if pending == 0 {
			if queue.len() != 0 || len(results) != 0 {
				panic("traverse: work left in the frontier or result channel with nothing pending")
			}
			break
		}
	}

	stopWorkers()
	_ = workers.Wait()

	if abortErr != nil && !errors.Is(abortErr, ErrCancelled) {
		current.logger.Error("traversal aborted", zap.Error(abortErr))
		return Result{}, abortErr
	}
	result := current.finish()
	if abortErr != nil {
		current.logger.Warn("traversal cancelled", zap.Int("nodes", len(result.Nodes)))
		return result, abortErr
	}
	return result, nil
}

// Walk performs the same traversal as Traverse on the calling goroutine, expanding nodes one at a
// time from an explicit worklist.
func (traverser *Traverser) Walk(ctx context.Context, root NodeRef) (Result, error) {
	if err := traverser.validate(root); err != nil {
		return Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	current := traverser.newRun(root)
	current.logger.Debug("sequential traversal started")

	worklist := []NodeRef{root}
	current.observeQueueLength(len(worklist))
	for len(worklist) > 0 {
		if ctx.Err() != nil {
			return current.finish(), fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		last := len(worklist) - 1
		ref := worklist[last]
		worklist = worklist[:last]

		current.enter()
		batch := current.expand(ctx, ref)
		current.leave()
		if batch.fatal != nil {
			current.logger.Error("traversal aborted", zap.Error(batch.fatal))
			return Result{}, batch.fatal
		}
		if batch.cancelled {
			continue
		}
		expandable := current.fold(batch)
		// reversed so the first child is expanded first
		for index := len(expandable) - 1; index >= 0; index-- {
			worklist = append(worklist, expandable[index])
		}
		current.observeQueueLength(len(worklist))
	}
	if ctx.Err() != nil {
		return current.finish(), fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return current.finish(), nil
}

// work is the worker loop. Every popped task yields exactly one published batch unless the
// traversal is shutting down.
func (current *run) work(ctx context.Context, queue *frontierQueue, results chan<- expansionResult) {
	for ctx.Err() == nil {
		ref, ok := queue.popWithTimeout(ctx, current.options.PollInterval)
		if !ok {
			continue
		}
		current.enter()
		batch := current.expand(ctx, ref)
		published := current.publish(ctx, results, batch)
		current.leave()
		if !published {
			return
		}
	}
}

func (current *run) publish(ctx context.Context, results chan<- expansionResult, batch expansionResult) bool {
	select {
	case results <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (current *run) receive(ctx context.Context, results <-chan expansionResult) (expansionResult, bool) {
	timer := time.NewTimer(current.options.PollInterval)
	defer timer.Stop()
	select {
	case batch := <-results:
		return batch, true
	case <-timer.C:
		return expansionResult{}, false
	case <-ctx.Done():
		return expansionResult{}, false
	}
}

// expand lists the children of ref and, when enabled, decorates each child with its tags.
// It never panics and never returns without a batch.
func (current *run) expand(ctx context.Context, ref NodeRef) (batch expansionResult) {
	batch.parent = ref
	defer func() {
		if recovered := recover(); recovered != nil {
			batch = expansionResult{
				parent:   ref,
				failures: []NodeFailure{{Ref: ref, Stage: StageChildren, Err: fmt.Errorf("%w: %v", errClientPanic, recovered)}},
			}
		}
	}()

	children, listErr := current.listChildren(ctx, ref)
	current.options.Metrics.observeExpansion(listErr)
	if listErr != nil {
		switch {
		case ctx.Err() != nil:
			batch.cancelled = true
		case IsFatal(listErr):
			batch.fatal = fmt.Errorf("list children of %s: %w", ref, listErr)
		default:
			batch.failures = append(batch.failures, NodeFailure{Ref: ref, Stage: StageChildren, Err: listErr})
		}
		return batch
	}
	for index := range children {
		if children[index].Parent == "" {
			children[index].Parent = ref
		}
	}
	if current.options.FetchTags {
		for index := range children {
			tags, tagErr := current.fetchTags(ctx, children[index].Ref)
			batch.tagFetches++
			current.options.Metrics.observeTagFetch(tagErr)
			if tagErr == nil {
				children[index].Tags = tags
				continue
			}
			switch {
			case ctx.Err() != nil:
				batch.cancelled = true
				return batch
			case IsFatal(tagErr):
				batch.fatal = fmt.Errorf("fetch tags of %s: %w", children[index].Ref, tagErr)
				return batch
			default:
				batch.failures = append(batch.failures, NodeFailure{Ref: children[index].Ref, Stage: StageTags, Err: tagErr})
			}
		}
	}
	batch.children = children
	return batch
}

func (current *run) listChildren(ctx context.Context, ref NodeRef) ([]NodeDescriptor, error) {
	callContext, cancel := context.WithTimeout(ctx, current.options.CallTimeout)
	defer cancel()
	return current.client.ListChildren(callContext, ref)
}

// fetchTags turns a client panic into an error so only the affected child loses its tags.
func (current *run) fetchTags(ctx context.Context, ref NodeRef) (tags []string, err error) {
	callContext, cancel := context.WithTimeout(ctx, current.options.CallTimeout)
	defer cancel()
	defer func() {
		if recovered := recover(); recovered != nil {
			tags, err = nil, fmt.Errorf("%w: %v", errClientPanic, recovered)
		}
	}()
	return current.client.FetchTags(callContext, ref)
}

// fold merges one batch into the accumulated state and returns the newly discovered references
// that must be expanded. Only the coordinating goroutine calls it.
func (current *run) fold(batch expansionResult) []NodeRef {
	current.stats.Expansions++
	current.stats.TagFetches += batch.tagFetches
	for _, failure := range batch.failures {
		current.logger.Warn("node fetch failed",
			zap.String("node", string(failure.Ref)),
			zap.String("stage", string(failure.Stage)),
			zap.Error(failure.Err))
	}
	current.failures = append(current.failures, batch.failures...)

	var expandable []NodeRef
	for _, child := range batch.children {
		if strings.TrimSpace(string(child.Ref)) == "" {
			current.logger.Debug("skipping child without reference", zap.String("parent", string(batch.parent)))
			continue
		}
		if _, seen := current.visited[child.Ref]; seen {
			continue
		}
		current.visited[child.Ref] = struct{}{}
		current.nodes = append(current.nodes, child)
		if current.options.Expandable(child) {
			expandable = append(expandable, child.Ref)
		}
	}
	return expandable
}

func (current *run) enter() {
	active := current.inFlight.Inc()
	for {
		observed := current.maxInFlight.Load()
		if active <= observed || current.maxInFlight.CompareAndSwap(observed, active) {
			break
		}
	}
	current.options.Metrics.observeInFlight(1)
}

func (current *run) leave() {
	current.inFlight.Dec()
	current.options.Metrics.observeInFlight(-1)
}

func (current *run) observeQueueLength(length int) {
	if length > current.stats.MaxQueueLength {
		current.stats.MaxQueueLength = length
	}
}

func (current *run) finish() Result {
	stats := current.stats
	stats.MaxInFlight = int(current.maxInFlight.Load())
	stats.Duration = time.Since(current.started)
	result := Result{
		RunID:    current.id,
		Root:     current.root,
		Nodes:    current.nodes,
		Failures: current.failures,
		Stats:    stats,
	}
	current.options.Metrics.observeRun(result)
	current.logger.Info("traversal finished",
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("failures", len(result.Failures)),
		zap.Int("max_queue_length", stats.MaxQueueLength),
		zap.Int("max_in_flight_requests", stats.MaxInFlight),
		zap.Duration("duration", stats.Duration))
	return result
}
