package traverse

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const generousTimeout = 10 * time.Second

func traverseWithTimeout(t *testing.T, traverser *Traverser, root NodeRef) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), generousTimeout)
	defer cancel()
	return traverser.Traverse(ctx, root)
}

func TestTraverseConcreteScenario(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "A", "B")
	client.addChildren("A", "A1", "A2")
	client.addChildren("B", "B1")

	result, err := traverseWithTimeout(t, New(client, Options{Workers: 2}), "R")
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	expected := map[NodeRef]int{"A": 1, "B": 1, "A1": 1, "A2": 1, "B1": 1}
	if diff := cmp.Diff(expected, refSet(result.Nodes)); diff != "" {
		t.Fatalf("unexpected nodes (-want +got):\n%s", diff)
	}
	require.Equal(t, NodeRef("R"), result.Root)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, 6, result.Stats.Expansions)
	for _, node := range result.Nodes {
		switch node.Ref {
		case "A", "B":
			require.Equal(t, NodeRef("R"), node.Parent)
		case "A1", "A2":
			require.Equal(t, NodeRef("A"), node.Parent)
		case "B1":
			require.Equal(t, NodeRef("B"), node.Parent)
		}
	}
}

func TestTraverseCompletenessAcrossWorkerCounts(t *testing.T) {
	testCases := []struct {
		depth     int
		branching int
	}{
		{depth: 1, branching: 1},
		{depth: 2, branching: 3},
		{depth: 3, branching: 4},
		{depth: 4, branching: 3},
	}
	for _, testCase := range testCases {
		expectedCount := 0
		power := 1
		for level := 1; level <= testCase.depth; level++ {
			power *= testCase.branching
			expectedCount += power
		}
		for _, workers := range []int{1, 2, 8, 64} {
			testCase := testCase
			workers := workers
			name := fmt.Sprintf("depth_%d_branching_%d_workers_%d", testCase.depth, testCase.branching, workers)
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				client := buildUniformTree("root", testCase.depth, testCase.branching)
				traverser := New(client, Options{Workers: workers})

				sequential, walkErr := traverser.Walk(context.Background(), "root")
				require.NoError(t, walkErr)
				concurrent, traverseErr := traverseWithTimeout(t, traverser, "root")
				require.NoError(t, traverseErr)

				require.Len(t, concurrent.Nodes, expectedCount)
				if diff := cmp.Diff(refSet(sequential.Nodes), refSet(concurrent.Nodes)); diff != "" {
					t.Fatalf("concurrent result differs from sequential walk (-walk +traverse):\n%s", diff)
				}
			})
		}
	}
}

func TestTraverseNeverReturnsDuplicates(t *testing.T) {
	client := buildUniformTree("root", 4, 4)
	result, err := traverseWithTimeout(t, New(client, Options{Workers: 16}), "root")
	require.NoError(t, err)
	for ref, count := range refSet(result.Nodes) {
		require.Equalf(t, 1, count, "node %s discovered %d times", ref, count)
	}
	for ref := range refSet(result.Nodes) {
		require.Equalf(t, 1, client.listCallCount(ref), "node %s expanded more than once", ref)
	}
}

func TestTraverseTerminatesForRandomTrees(t *testing.T) {
	random := rand.New(rand.NewSource(20240917))
	for iteration := 0; iteration < 100; iteration++ {
		client, total := buildRandomTree(random, "root")
		workers := 1 + random.Intn(16)
		result, err := traverseWithTimeout(t, New(client, Options{Workers: workers}), "root")
		require.NoErrorf(t, err, "iteration %d with %d workers", iteration, workers)
		require.Lenf(t, result.Nodes, total, "iteration %d with %d workers", iteration, workers)
	}
}

func TestTraverseToleratesNodeFailure(t *testing.T) {
	client := buildUniformTree("root", 3, 3)
	failing := NodeRef("root.1")
	client.listFailures[failing] = errors.New("503 service unavailable")
	expectedCount := subtreeSize(client, "root") - subtreeSize(client, failing)

	result, err := traverseWithTimeout(t, New(client, Options{Workers: 4}), "root")
	require.NoError(t, err)
	require.Len(t, result.Nodes, expectedCount)
	require.True(t, result.Partial())
	require.Equal(t, []NodeRef{failing}, result.FailedRefs())
	require.Error(t, result.Err())
	require.Contains(t, refSet(result.Nodes), failing)
	require.NotContains(t, refSet(result.Nodes), NodeRef("root.1.0"))
}

func TestTraverseIsIdempotent(t *testing.T) {
	client := buildUniformTree("root", 3, 5)
	traverser := New(client, Options{Workers: 8})
	first, firstErr := traverseWithTimeout(t, traverser, "root")
	require.NoError(t, firstErr)
	second, secondErr := traverseWithTimeout(t, traverser, "root")
	require.NoError(t, secondErr)
	if diff := cmp.Diff(refSet(first.Nodes), refSet(second.Nodes)); diff != "" {
		t.Fatalf("re-run changed the result (-first +second):\n%s", diff)
	}
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestTraverseDeduplicatesSharedChildren(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "A", "B")
	client.addChildren("A", "shared")
	client.addChildren("B", "shared", "R")
	client.addChildren("shared", "leaf")

	for _, workers := range []int{1, 4} {
		result, err := traverseWithTimeout(t, New(client, Options{Workers: workers}), "R")
		require.NoError(t, err)
		expected := map[NodeRef]int{"A": 1, "B": 1, "shared": 1, "leaf": 1}
		if diff := cmp.Diff(expected, refSet(result.Nodes)); diff != "" {
			t.Fatalf("unexpected nodes with %d workers (-want +got):\n%s", workers, diff)
		}
	}
	require.Equal(t, 2, client.listCallCount("shared"))
	require.Equal(t, 2, client.listCallCount("R"))
}

func TestTraverseHonorsExpandPredicate(t *testing.T) {
	client := newFakeTreeClient()
	client.children["R"] = []NodeDescriptor{
		{Ref: "folder", Type: "folder"},
		{Ref: "leaf", Type: "text"},
	}
	client.children["folder"] = []NodeDescriptor{{Ref: "inner", Type: "text"}}
	onlyFolders := func(descriptor NodeDescriptor) bool {
		return descriptor.Type == "folder"
	}

	result, err := traverseWithTimeout(t, New(client, Options{Workers: 3, Expandable: onlyFolders}), "R")
	require.NoError(t, err)
	require.Len(t, result.Nodes, 3)
	require.Equal(t, 0, client.listCallCount("leaf"))
	require.Equal(t, 0, client.listCallCount("inner"))
	require.Equal(t, 2, client.totalListCalls())
}

func TestTraverseFetchesTags(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "A", "B")
	client.tags["A"] = []string{"safety", "v2"}
	client.tagFailures["B"] = errors.New("connection reset")

	result, err := traverseWithTimeout(t, New(client, Options{Workers: 2, FetchTags: true}), "R")
	require.NoError(t, err)
	require.Len(t, result.Nodes, 2)
	for _, node := range result.Nodes {
		switch node.Ref {
		case "A":
			require.Equal(t, []string{"safety", "v2"}, node.Tags)
		case "B":
			require.Empty(t, node.Tags)
		}
	}
	require.Len(t, result.Failures, 1)
	require.Equal(t, StageTags, result.Failures[0].Stage)
	require.Equal(t, NodeRef("B"), result.Failures[0].Ref)
	require.Empty(t, result.FailedRefs())
	require.Equal(t, 2, result.Stats.TagFetches)
}

func TestTraverseAbortsOnFatalError(t *testing.T) {
	for _, fetchTags := range []bool{false, true} {
		client := buildUniformTree("root", 3, 3)
		if fetchTags {
			client.tagFailures["root.2.1"] = fmt.Errorf("status 401: %w", ErrFatal)
		} else {
			client.listFailures["root.2"] = fmt.Errorf("status 401: %w", ErrFatal)
		}
		result, err := traverseWithTimeout(t, New(client, Options{Workers: 4, FetchTags: fetchTags}), "root")
		require.Error(t, err)
		require.True(t, IsFatal(err))
		require.Empty(t, result.Nodes)
		require.Empty(t, result.Failures)
	}
}

func TestWalkAbortsOnFatalError(t *testing.T) {
	client := buildUniformTree("root", 2, 2)
	client.listFailures["root.0"] = fmt.Errorf("rejected: %w", ErrFatal)
	result, err := New(client, Options{}).Walk(context.Background(), "root")
	require.True(t, IsFatal(err))
	require.Empty(t, result.Nodes)
}

func TestTraverseRecoversClientPanic(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "A", "B")
	client.addChildren("A", "A1")
	client.addChildren("B", "B1")
	client.panics["B"] = true

	result, err := traverseWithTimeout(t, New(client, Options{Workers: 2}), "R")
	require.NoError(t, err)
	require.Equal(t, []NodeRef{"B"}, result.FailedRefs())
	require.ErrorIs(t, result.Failures[0].Err, errClientPanic)
	require.Len(t, result.Nodes, 3)
}

func TestTraverseKeepsSiblingsWhenTagFetchPanics(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "A", "B", "C")
	client.addChildren("A", "A1")
	client.tags["A"] = []string{"alpha"}
	client.tagPanics["B"] = true

	for _, mode := range []struct {
		name string
		walk bool
	}{{name: "concurrent"}, {name: "sequential", walk: true}} {
		t.Run(mode.name, func(t *testing.T) {
			traverser := New(client, Options{Workers: 2, FetchTags: true})
			var result Result
			var err error
			if mode.walk {
				result, err = traverser.Walk(context.Background(), "R")
			} else {
				result, err = traverseWithTimeout(t, traverser, "R")
			}
			require.NoError(t, err)
			require.Equal(t, []NodeRef{"A", "A1", "B", "C"}, refsOf(result))
			require.Empty(t, result.FailedRefs())
			require.Len(t, result.Failures, 1)
			require.Equal(t, NodeRef("B"), result.Failures[0].Ref)
			require.Equal(t, StageTags, result.Failures[0].Stage)
			require.ErrorIs(t, result.Failures[0].Err, errClientPanic)
			result.SortNodes()
			require.Equal(t, []string{"alpha"}, result.Nodes[0].Tags)
			require.Empty(t, result.Nodes[2].Tags)
		})
	}
}

func TestTraverseAppliesCallTimeout(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "fast", "slow")
	client.addChildren("fast", "fast.child")
	client.blocking["slow"] = true

	traverser := New(client, Options{Workers: 2, CallTimeout: 50 * time.Millisecond})
	result, err := traverseWithTimeout(t, traverser, "R")
	require.NoError(t, err)
	require.Equal(t, []NodeRef{"slow"}, result.FailedRefs())
	require.ErrorIs(t, result.Failures[0].Err, context.DeadlineExceeded)
	require.Len(t, result.Nodes, 3)
}

func TestTraverseCancellationReturnsPartialResult(t *testing.T) {
	client := newFakeTreeClient()
	client.addChildren("R", "A", "B")
	client.blocking["B"] = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)
	result, err := New(client, Options{Workers: 2}).Traverse(ctx, "R")
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, result.Nodes, 2)
	require.Empty(t, result.Failures)
}

func TestWalkCancellation(t *testing.T) {
	client := buildUniformTree("root", 2, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(client, Options{}).Walk(ctx, "root")
	require.ErrorIs(t, err, ErrCancelled)
}

func TestTraverseRejectsInvalidInput(t *testing.T) {
	_, err := New(nil, Options{}).Traverse(context.Background(), "R")
	require.ErrorIs(t, err, errNilClient)
	_, err = New(newFakeTreeClient(), Options{}).Traverse(context.Background(), "  ")
	require.ErrorIs(t, err, errEmptyRoot)
	_, err = New(newFakeTreeClient(), Options{}).Walk(context.Background(), "")
	require.ErrorIs(t, err, errEmptyRoot)
}

func TestTraverseLeafRoot(t *testing.T) {
	result, err := traverseWithTimeout(t, New(newFakeTreeClient(), Options{Workers: 4}), "lonely")
	require.NoError(t, err)
	require.Empty(t, result.Nodes)
	require.Equal(t, 1, result.Stats.Expansions)
}

func TestTraverseRecordsStatistics(t *testing.T) {
	client := buildUniformTree("root", 2, 6)
	client.latency = 5 * time.Millisecond
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	result, err := traverseWithTimeout(t, New(client, Options{Workers: 4, Metrics: metrics}), "root")
	require.NoError(t, err)
	require.Equal(t, 43, result.Stats.Expansions)
	require.GreaterOrEqual(t, result.Stats.MaxInFlight, 1)
	require.LessOrEqual(t, result.Stats.MaxInFlight, 4)
	require.GreaterOrEqual(t, result.Stats.MaxQueueLength, 1)
	require.Equal(t, float64(42), testutil.ToFloat64(metrics.nodes))
	require.Equal(t, float64(43), testutil.ToFloat64(metrics.expansions.WithLabelValues("success")))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.inFlight))
}

func TestOptionsNormalization(t *testing.T) {
	testCases := []struct {
		name         string
		input        Options
		expectWorker int
		expectPoll   time.Duration
	}{
		{name: "defaults", input: Options{}, expectWorker: DefaultWorkers, expectPoll: DefaultPollInterval},
		{name: "short_poll_clamped", input: Options{Workers: 3, PollInterval: time.Millisecond}, expectWorker: 3, expectPoll: minimumPollInterval},
		{name: "long_poll_clamped", input: Options{Workers: 1000, PollInterval: time.Second}, expectWorker: maximumWorkers, expectPoll: maximumPollInterval},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			normalized := testCase.input.normalized()
			require.Equal(t, testCase.expectWorker, normalized.Workers)
			require.Equal(t, testCase.expectPoll, normalized.PollInterval)
			require.NotNil(t, normalized.Expandable)
			require.NotNil(t, normalized.Logger)
		})
	}
}
