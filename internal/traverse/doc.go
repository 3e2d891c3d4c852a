// Package traverse walks a remote hierarchy of unknown shape with a fixed pool of workers.
//
// A Traverser seeds a frontier queue with the root, workers expand frontier entries by asking a
// NodeClient for direct children, and a single coordinator loop folds the discovered children back
// into the frontier until no work remains anywhere: the frontier is empty, no result batch is waiting
// and no expansion is in flight.
//
// Only the coordinator writes the accumulated node set and the pending counter, so neither needs a
// lock. Workers communicate exclusively through the frontier queue and the result channel.
package traverse
