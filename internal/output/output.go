package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/rmtree/internal/traverse"
)

const (
	indentPrefix = ""
	indentSpacer = "  "
	yamlIndent   = 2

	xmlHeader      = xml.Header
	xmlResultsName = "results"

	separatorLine = "----------------------------------------"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
)

// Render renders reports in the requested format. A single report is rendered as an object,
// several as a list.
func Render(format Format, reports []Report) (string, error) {
	switch format {
	case FormatJSON:
		return RenderJSON(reports)
	case FormatYAML:
		return RenderYAML(reports)
	case FormatXML:
		return RenderXML(reports)
	case FormatRaw:
		var buffer bytes.Buffer
		WriteRaw(&buffer, reports)
		return buffer.String(), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// RenderJSON marshals reports to indented JSON.
func RenderJSON(reports []Report) (string, error) {
	if len(reports) == 0 {
		return "[]", nil
	}
	var value interface{} = reports
	if len(reports) == 1 {
		value = reports[0]
	}
	encoded, jsonEncodeError := json.MarshalIndent(value, indentPrefix, indentSpacer)
	return string(encoded), jsonEncodeError
}

// RenderYAML marshals reports to YAML.
func RenderYAML(reports []Report) (string, error) {
	var value interface{} = reports
	if len(reports) == 1 {
		value = reports[0]
	} else if len(reports) == 0 {
		value = []Report{}
	}
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(yamlIndent)
	if encodeErr := encoder.Encode(value); encodeErr != nil {
		return "", encodeErr
	}
	if closeErr := encoder.Close(); closeErr != nil {
		return "", closeErr
	}
	return buffer.String(), nil
}

// RenderXML marshals reports to an XML document.
func RenderXML(reports []Report) (string, error) {
	var value interface{}
	if len(reports) == 1 {
		value = reports[0]
	} else {
		value = struct {
			XMLName xml.Name `xml:""`
			Reports []Report `xml:"traversal"`
		}{XMLName: xml.Name{Local: xmlResultsName}, Reports: reports}
	}
	encoded, xmlMarshalError := xml.MarshalIndent(value, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return "", xmlMarshalError
	}
	return xmlHeader + string(encoded), nil
}

// WriteRaw prints each report as an indented tree rooted at the report root, followed by
// failures and a summary line.
func WriteRaw(writer io.Writer, reports []Report) {
	for index, report := range reports {
		if index > 0 {
			fmt.Fprintln(writer)
		}
		fmt.Fprintf(writer, "--- Tree: %s ---\n", report.Root)
		children := groupByParent(report)
		fmt.Fprintf(writer, "%s\n", report.Root)
		writeChildren(writer, children, report.Root, "", map[traverse.NodeRef]struct{}{report.Root: {}})
		if len(report.Failures) > 0 {
			fmt.Fprintln(writer, separatorLine)
			for _, failure := range report.Failures {
				fmt.Fprintf(writer, "Failed %s of %s: %s\n", failure.Stage, failure.Ref, failure.Error)
			}
		}
		fmt.Fprintln(writer, FormatSummaryLine(report))
	}
}

// FormatSummaryLine summarizes a report on one line.
func FormatSummaryLine(report Report) string {
	label := "nodes"
	if len(report.Nodes) == 1 {
		label = "node"
	}
	line := fmt.Sprintf("Summary: %d %s, %d failures", len(report.Nodes), label, len(report.Failures))
	if report.Stats != nil {
		line += fmt.Sprintf(", %d expansions, %s", report.Stats.Expansions, report.Stats.Duration)
	}
	return line
}

// groupByParent indexes nodes under their parent. Nodes whose parent was not discovered hang off
// the root.
func groupByParent(report Report) map[traverse.NodeRef][]traverse.NodeDescriptor {
	known := make(map[traverse.NodeRef]struct{}, len(report.Nodes)+1)
	known[report.Root] = struct{}{}
	for _, node := range report.Nodes {
		known[node.Ref] = struct{}{}
	}
	children := make(map[traverse.NodeRef][]traverse.NodeDescriptor)
	for _, node := range report.Nodes {
		parent := node.Parent
		if _, ok := known[parent]; !ok || parent == node.Ref {
			parent = report.Root
		}
		children[parent] = append(children[parent], node)
	}
	for parent := range children {
		siblings := children[parent]
		sort.SliceStable(siblings, func(left, right int) bool {
			return siblings[left].Ref < siblings[right].Ref
		})
	}
	return children
}

func writeChildren(writer io.Writer, children map[traverse.NodeRef][]traverse.NodeDescriptor, parent traverse.NodeRef, prefix string, printed map[traverse.NodeRef]struct{}) {
	siblings := children[parent]
	for index, node := range siblings {
		isLast := index == len(siblings)-1
		connector, childPrefix := treeBranchConnector, prefix+treeBranchPadding
		if isLast {
			connector, childPrefix = treeLastConnector, prefix+treeLastPadding
		}
		fmt.Fprintf(writer, "%s%s%s\n", prefix, connector, nodeLabel(node))
		if _, seen := printed[node.Ref]; seen {
			continue
		}
		printed[node.Ref] = struct{}{}
		writeChildren(writer, children, node.Ref, childPrefix, printed)
	}
}

func nodeLabel(node traverse.NodeDescriptor) string {
	parts := []string{string(node.Ref)}
	if node.Key != "" {
		parts = append(parts, "["+node.Key+"]")
	}
	if node.Name != "" {
		parts = append(parts, node.Name)
	}
	label := strings.Join(parts, " ")
	if len(node.Tags) > 0 {
		label += " {" + strings.Join(node.Tags, ", ") + "}"
	}
	return label
}
