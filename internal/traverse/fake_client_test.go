package traverse

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// fakeTreeClient serves a fixed in-memory hierarchy.
type fakeTreeClient struct {
	children     map[NodeRef][]NodeDescriptor
	tags         map[NodeRef][]string
	listFailures map[NodeRef]error
	tagFailures  map[NodeRef]error
	panics       map[NodeRef]bool
	tagPanics    map[NodeRef]bool
	blocking     map[NodeRef]bool
	latency      time.Duration

	mu        sync.Mutex
	listCalls map[NodeRef]int
	tagCalls  map[NodeRef]int
}

func newFakeTreeClient() *fakeTreeClient {
	return &fakeTreeClient{
		children:     map[NodeRef][]NodeDescriptor{},
		tags:         map[NodeRef][]string{},
		listFailures: map[NodeRef]error{},
		tagFailures:  map[NodeRef]error{},
		panics:       map[NodeRef]bool{},
		tagPanics:    map[NodeRef]bool{},
		blocking:     map[NodeRef]bool{},
		listCalls:    map[NodeRef]int{},
		tagCalls:     map[NodeRef]int{},
	}
}

func (client *fakeTreeClient) addChildren(parent NodeRef, refs ...NodeRef) {
	for _, ref := range refs {
		client.children[parent] = append(client.children[parent], NodeDescriptor{Ref: ref, Name: string(ref)})
	}
}

func (client *fakeTreeClient) ListChildren(ctx context.Context, ref NodeRef) ([]NodeDescriptor, error) {
	client.mu.Lock()
	client.listCalls[ref]++
	client.mu.Unlock()
	if client.panics[ref] {
		panic(fmt.Sprintf("boom at %s", ref))
	}
	if client.blocking[ref] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if client.latency > 0 {
		select {
		case <-time.After(client.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, failing := client.listFailures[ref]; failing {
		return nil, err
	}
	source := client.children[ref]
	result := make([]NodeDescriptor, len(source))
	copy(result, source)
	return result, nil
}

func (client *fakeTreeClient) FetchTags(ctx context.Context, ref NodeRef) ([]string, error) {
	client.mu.Lock()
	client.tagCalls[ref]++
	client.mu.Unlock()
	if client.tagPanics[ref] {
		panic(fmt.Sprintf("tag boom at %s", ref))
	}
	if err, failing := client.tagFailures[ref]; failing {
		return nil, err
	}
	return client.tags[ref], nil
}

func (client *fakeTreeClient) listCallCount(ref NodeRef) int {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.listCalls[ref]
}

func (client *fakeTreeClient) totalListCalls() int {
	client.mu.Lock()
	defer client.mu.Unlock()
	total := 0
	for _, count := range client.listCalls {
		total += count
	}
	return total
}

// buildUniformTree creates a tree of the given depth where every inner node has branching children.
func buildUniformTree(root NodeRef, depth int, branching int) *fakeTreeClient {
	client := newFakeTreeClient()
	level := []NodeRef{root}
	for currentDepth := 0; currentDepth < depth; currentDepth++ {
		var next []NodeRef
		for _, parent := range level {
			for index := 0; index < branching; index++ {
				child := NodeRef(fmt.Sprintf("%s.%d", parent, index))
				client.addChildren(parent, child)
				next = append(next, child)
			}
		}
		level = next
	}
	return client
}

// buildRandomTree creates a tree with a random shape and returns it with its descendant count.
func buildRandomTree(random *rand.Rand, root NodeRef) (*fakeTreeClient, int) {
	client := newFakeTreeClient()
	maxDepth := 1 + random.Intn(5)
	total := 0
	type frame struct {
		ref   NodeRef
		depth int
	}
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		last := len(stack) - 1
		current := stack[last]
		stack = stack[:last]
		if current.depth >= maxDepth {
			continue
		}
		width := random.Intn(5)
		for index := 0; index < width; index++ {
			child := NodeRef(fmt.Sprintf("%s.%d", current.ref, index))
			client.addChildren(current.ref, child)
			total++
			stack = append(stack, frame{ref: child, depth: current.depth + 1})
		}
	}
	return client, total
}

// subtreeSize counts the descendants of ref in client's hierarchy.
func subtreeSize(client *fakeTreeClient, ref NodeRef) int {
	total := 0
	worklist := []NodeRef{ref}
	for len(worklist) > 0 {
		last := len(worklist) - 1
		current := worklist[last]
		worklist = worklist[:last]
		for _, child := range client.children[current] {
			total++
			worklist = append(worklist, child.Ref)
		}
	}
	return total
}

func refSet(nodes []NodeDescriptor) map[NodeRef]int {
	set := make(map[NodeRef]int, len(nodes))
	for _, node := range nodes {
		set[node.Ref]++
	}
	return set
}

// refsOf returns the sorted references of the discovered nodes.
func refsOf(result Result) []NodeRef {
	refs := make([]NodeRef, 0, len(result.Nodes))
	for _, node := range result.Nodes {
		refs = append(refs, node.Ref)
	}
	sort.Slice(refs, func(left, right int) bool {
		return refs[left] < refs[right]
	})
	return refs
}
