// Package output renders traversal reports as json, yaml, xml or a raw tree.
package output

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/temirov/rmtree/internal/traverse"
)

// Format names a supported rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
	FormatRaw  Format = "raw"
)

// ParseFormat normalizes a user supplied format name. An empty name selects json.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatXML:
		return FormatXML, nil
	case FormatRaw:
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("unsupported format %q", name)
	}
}

// FailureReport is the serializable form of a tolerated node failure.
type FailureReport struct {
	Ref   traverse.NodeRef `json:"ref" yaml:"ref" xml:"ref,attr"`
	Stage traverse.Stage   `json:"stage" yaml:"stage" xml:"stage,attr"`
	Error string           `json:"error" yaml:"error" xml:",chardata"`
}

// Report is the rendered view of one traversal or listing.
type Report struct {
	XMLName  xml.Name                  `json:"-" yaml:"-" xml:"traversal"`
	RunID    string                    `json:"runId,omitempty" yaml:"runId,omitempty" xml:"runId,attr,omitempty"`
	Root     traverse.NodeRef          `json:"root" yaml:"root" xml:"root,attr"`
	Partial  bool                      `json:"partial" yaml:"partial" xml:"partial,attr"`
	Nodes    []traverse.NodeDescriptor `json:"nodes" yaml:"nodes" xml:"nodes>node"`
	Failures []FailureReport           `json:"failures,omitempty" yaml:"failures,omitempty" xml:"failures>failure,omitempty"`
	Stats    *traverse.Stats           `json:"stats,omitempty" yaml:"stats,omitempty" xml:"stats,omitempty"`
}

// NewReport converts a traversal result. Nodes are ordered by reference.
func NewReport(result traverse.Result) Report {
	result.Nodes = append([]traverse.NodeDescriptor{}, result.Nodes...)
	result.SortNodes()
	failures := make([]FailureReport, 0, len(result.Failures))
	for _, failure := range result.Failures {
		message := ""
		if failure.Err != nil {
			message = failure.Err.Error()
		}
		failures = append(failures, FailureReport{Ref: failure.Ref, Stage: failure.Stage, Error: message})
	}
	sort.SliceStable(failures, func(left, right int) bool {
		if failures[left].Ref == failures[right].Ref {
			return failures[left].Stage < failures[right].Stage
		}
		return failures[left].Ref < failures[right].Ref
	})
	stats := result.Stats
	return Report{
		RunID:    result.RunID,
		Root:     result.Root,
		Partial:  result.Partial(),
		Nodes:    result.Nodes,
		Failures: failures,
		Stats:    &stats,
	}
}

// NewListingReport wraps nodes fetched by a single call, such as the children or roots of an item.
func NewListingReport(root traverse.NodeRef, nodes []traverse.NodeDescriptor) Report {
	return NewReport(traverse.Result{Root: root, Nodes: nodes}).withoutStats()
}

func (report Report) withoutStats() Report {
	report.Stats = nil
	return report
}
