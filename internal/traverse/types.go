package traverse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
)

var (
	// ErrFatal marks client errors that invalidate every further remote call, such as rejected
	// credentials. A NodeClient wraps it so the traversal aborts instead of failing node by node.
	ErrFatal = errors.New("fatal remote client error")
	// ErrCancelled is returned together with a partial result when the caller cancels a traversal.
	ErrCancelled = errors.New("traversal cancelled")

	errNilClient = errors.New("traverse: node client is nil")
	errEmptyRoot = errors.New("traverse: root reference is empty")
)

// NodeRef identifies a node in the remote hierarchy.
type NodeRef string

// NodeDescriptor describes one discovered node.
type NodeDescriptor struct {
	Ref         NodeRef           `json:"ref" yaml:"ref" xml:"ref,attr"`
	Parent      NodeRef           `json:"parent,omitempty" yaml:"parent,omitempty" xml:"parent,attr,omitempty"`
	Type        string            `json:"type,omitempty" yaml:"type,omitempty" xml:"type,attr,omitempty"`
	ChildType   string            `json:"childType,omitempty" yaml:"childType,omitempty" xml:"childType,attr,omitempty"`
	HasChildren bool              `json:"hasChildren,omitempty" yaml:"hasChildren,omitempty" xml:"hasChildren,attr,omitempty"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty" xml:"name,omitempty"`
	Key         string            `json:"key,omitempty" yaml:"key,omitempty" xml:"key,attr,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty" xml:"tags>tag,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" xml:"-"`
}

// NodeClient performs the two remote operations the traversal depends on.
// Implementations must be safe for concurrent use and assemble any pagination themselves.
type NodeClient interface {
	ListChildren(ctx context.Context, ref NodeRef) ([]NodeDescriptor, error)
	FetchTags(ctx context.Context, ref NodeRef) ([]string, error)
}

// ExpandPredicate reports whether a discovered node may have children and must be expanded.
type ExpandPredicate func(descriptor NodeDescriptor) bool

// ExpandAlways treats every node as potentially having children.
func ExpandAlways(NodeDescriptor) bool {
	return true
}

// Stage names the remote operation that failed for a node.
type Stage string

const (
	// StageChildren marks a failed ListChildren call; the node's subtree is missing.
	StageChildren Stage = "children"
	// StageTags marks a failed FetchTags call; the node is present without tags.
	StageTags Stage = "tags"
)

// NodeFailure records a node-level failure tolerated by the traversal.
type NodeFailure struct {
	Ref   NodeRef
	Stage Stage
	Err   error
}

func (failure NodeFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", failure.Stage, failure.Ref, failure.Err)
}

func (failure NodeFailure) Unwrap() error {
	return failure.Err
}

// Stats summarizes the work performed by a traversal run.
type Stats struct {
	Expansions     int           `json:"expansions" yaml:"expansions" xml:"expansions,attr"`
	TagFetches     int           `json:"tagFetches" yaml:"tagFetches" xml:"tagFetches,attr"`
	MaxInFlight    int           `json:"maxInFlight" yaml:"maxInFlight" xml:"maxInFlight,attr"`
	MaxQueueLength int           `json:"maxQueueLength" yaml:"maxQueueLength" xml:"maxQueueLength,attr"`
	Duration       time.Duration `json:"duration" yaml:"duration" xml:"duration,attr"`
}

// Result is the outcome of one traversal. Nodes never contains the root.
type Result struct {
	RunID    string
	Root     NodeRef
	Nodes    []NodeDescriptor
	Failures []NodeFailure
	Stats    Stats
}

// Partial reports whether any subtree or tag set could not be fetched.
func (result Result) Partial() bool {
	return len(result.Failures) > 0
}

// FailedRefs returns the sorted references whose children could not be listed.
func (result Result) FailedRefs() []NodeRef {
	var refs []NodeRef
	for _, failure := range result.Failures {
		if failure.Stage == StageChildren {
			refs = append(refs, failure.Ref)
		}
	}
	sort.Slice(refs, func(left, right int) bool {
		return refs[left] < refs[right]
	})
	return refs
}

// Err combines the node-level failures into a single error, or nil for a complete traversal.
func (result Result) Err() error {
	var combined error
	for _, failure := range result.Failures {
		combined = multierr.Append(combined, failure)
	}
	return combined
}

// SortNodes orders Nodes by reference so renderers and tests see a stable sequence.
func (result *Result) SortNodes() {
	sort.SliceStable(result.Nodes, func(left, right int) bool {
		return result.Nodes[left].Ref < result.Nodes[right].Ref
	})
}

// IsFatal reports whether err must abort a traversal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
