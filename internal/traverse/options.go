package traverse

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWorkers is the pool size used when Options.Workers is not positive.
	DefaultWorkers = 16
	// DefaultPollInterval bounds every wait on the frontier queue and the result channel.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultCallTimeout bounds a single remote call.
	DefaultCallTimeout = 30 * time.Second

	minimumPollInterval = 50 * time.Millisecond
	maximumPollInterval = 200 * time.Millisecond
	maximumWorkers      = 256
)

// Options configures a Traverser.
type Options struct {
	// Workers is the fixed size of the worker pool.
	Workers int
	// PollInterval is the bounded wait used by workers and the coordinator; it is also the
	// cancellation granularity. Values are clamped to 50ms..200ms.
	PollInterval time.Duration
	// CallTimeout applies to each ListChildren and FetchTags call separately.
	CallTimeout time.Duration
	// FetchTags enables tag enrichment of every discovered node.
	FetchTags bool
	// Expandable decides which discovered nodes are expanded. Nil means ExpandAlways.
	Expandable ExpandPredicate
	Logger     *zap.Logger
	Metrics    *Metrics
}

func (options Options) normalized() Options {
	result := options
	if result.Workers <= 0 {
		result.Workers = DefaultWorkers
	}
	if result.Workers > maximumWorkers {
		result.Workers = maximumWorkers
	}
	switch {
	case result.PollInterval <= 0:
		result.PollInterval = DefaultPollInterval
	case result.PollInterval < minimumPollInterval:
		result.PollInterval = minimumPollInterval
	case result.PollInterval > maximumPollInterval:
		result.PollInterval = maximumPollInterval
	}
	if result.CallTimeout <= 0 {
		result.CallTimeout = DefaultCallTimeout
	}
	if result.Expandable == nil {
		result.Expandable = ExpandAlways
	}
	if result.Logger == nil {
		result.Logger = zap.NewNop()
	}
	return result
}
