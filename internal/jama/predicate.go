package jama

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/rmtree/internal/traverse"
)

const (
	// PredicateAlways expands every discovered item.
	PredicateAlways = "always"
	// PredicateApproximate expands container item types and items declaring a child type.
	PredicateApproximate = "approximate"
	// PredicateStrict expands items declaring a child type or listed as regular items.
	PredicateStrict = "strict"
)

// DefaultContainerItemTypes lists the item type ids treated as containers by the approximate predicate.
var DefaultContainerItemTypes = []int{92}

// ApproximatePredicate expands items whose type is one of containerTypes or that declare a child item type.
func ApproximatePredicate(containerTypes ...int) traverse.ExpandPredicate {
	containers := make(map[string]struct{}, len(containerTypes))
	for _, containerType := range containerTypes {
		containers[strconv.Itoa(containerType)] = struct{}{}
	}
	return func(descriptor traverse.NodeDescriptor) bool {
		if descriptor.ChildType != "" || descriptor.HasChildren {
			return true
		}
		_, container := containers[descriptor.Type]
		return container
	}
}

// StrictPredicate expands items that declare a child item type or are plain items resources.
func StrictPredicate(descriptor traverse.NodeDescriptor) bool {
	if descriptor.ChildType != "" || descriptor.HasChildren {
		return true
	}
	return descriptor.Attributes[AttributeResourceType] == resourceTypeItems
}

// PredicateByName resolves a configured predicate name.
func PredicateByName(name string, containerTypes []int) (traverse.ExpandPredicate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PredicateAlways:
		return traverse.ExpandAlways, nil
	case PredicateApproximate:
		if len(containerTypes) == 0 {
			containerTypes = DefaultContainerItemTypes
		}
		return ApproximatePredicate(containerTypes...), nil
	case PredicateStrict:
		return StrictPredicate, nil
	default:
		return nil, fmt.Errorf("unknown expand predicate %q (want %s, %s or %s)", name, PredicateAlways, PredicateApproximate, PredicateStrict)
	}
}
