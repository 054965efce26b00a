package graphquery

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/osfiler/osfiler/domain/graph"
	"github.com/osfiler/osfiler/domain/taxonomy"
)

// DefaultColor is used for node types missing from the palette.
const DefaultColor = "#9E9E9E"

const tooltipEntries = 5

var palette = map[string]string{
	"PERSON":         "#FF6384",
	"ORGANIZATION":   "#36A2EB",
	"USERNAME":       "#FFCE56",
	"EMAIL":          "#4BC0C0",
	"PHONE":          "#9966FF",
	"ADDRESS":        "#FF9F40",
	"WEBSITE":        "#8AC24A",
	"SOCIAL_PROFILE": "#00BCD4",
	"DOCUMENT":       "#795548",
	"IMAGE":          "#9E9E9E",
	"LOCATION":       "#607D8B",
	"EVENT":          "#F44336",
	"CUSTOM":         "#9C27B0",
}

// ColorFor returns the display color of a node type.
func ColorFor(nodeType string) string {
	if c, ok := palette[taxonomy.NormalizeValue(nodeType)]; ok {
		return c
	}
	return DefaultColor
}

// Font is the label styling hint of a node or edge.
type Font struct {
	Face  string `json:"face,omitempty"`
	Align string `json:"align,omitempty"`
	Size  int    `json:"size"`
}

// VisNode is a node as the visualization renderer expects it.
type VisNode struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Title           string `json:"title"`
	Color           string `json:"color"`
	Shape           string `json:"shape"`
	Size            int    `json:"size"`
	Font            Font   `json:"font"`
	Type            string `json:"type"`
	InvestigationID string `json:"investigation_id"`
}

// VisEdge is a relationship as the visualization renderer expects it.
type VisEdge struct {
	ID     string  `json:"id"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Label  string  `json:"label"`
	Arrows string  `json:"arrows"`
	Width  float64 `json:"width"`
	Title  string  `json:"title"`
	Font   Font    `json:"font"`
}

// Graph is the flattened projection of one investigation.
type Graph struct {
	Nodes []VisNode `json:"nodes"`
	Edges []VisEdge `json:"edges"`
}

func toVisNode(n graph.Node) VisNode {
	return VisNode{
		ID:              n.ID,
		Label:           fmt.Sprintf("%s\n(%s)", n.Name, n.Type),
		Title:           nodeTitle(n),
		Color:           ColorFor(n.Type),
		Shape:           "dot",
		Size:            10,
		Font:            Font{Face: "Arial", Size: 14},
		Type:            n.Type,
		InvestigationID: n.InvestigationID,
	}
}

func toVisEdge(r graph.Relationship) VisEdge {
	var b strings.Builder
	b.WriteString("Relationship: ")
	b.WriteString(html.EscapeString(r.Type))
	for _, k := range scalarKeys(r.Data) {
		if k == "id" {
			continue
		}
		fmt.Fprintf(&b, "<br>%s: %s", html.EscapeString(k), html.EscapeString(fmt.Sprint(r.Data[k])))
	}

	return VisEdge{
		ID:     r.ID,
		From:   r.SourceNodeID,
		To:     r.TargetNodeID,
		Label:  r.Type,
		Arrows: "to",
		Width:  1 + r.Strength*5,
		Title:  b.String(),
		Font:   Font{Align: "middle", Size: 12},
	}
}

// nodeTitle renders the HTML tooltip of a node. Every interpolated value is
// escaped.
func nodeTitle(n graph.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<div style='font-weight:bold;'>%s</div>", html.EscapeString(n.Name))
	fmt.Fprintf(&b, "<div>Type: %s</div>", html.EscapeString(n.Type))

	keys := scalarKeys(n.Data)
	if len(keys) > 0 {
		b.WriteString("<div style='margin-top:10px;'>")
		shown := keys[:min(len(keys), tooltipEntries)]
		for _, k := range shown {
			fmt.Fprintf(&b, "<div><b>%s:</b> %s</div>", html.EscapeString(k), html.EscapeString(fmt.Sprint(n.Data[k])))
		}
		if more := len(n.Data) - len(shown); more > 0 {
			fmt.Fprintf(&b, "<div>... and %d more properties</div>", more)
		}
		b.WriteString("</div>")
	}

	fmt.Fprintf(&b, "<div style='margin-top:10px; font-size:smaller;'>Created: %s</div>",
		n.CreatedAt.UTC().Format("2006-01-02 15:04"))
	return b.String()
}

// scalarKeys returns the sorted keys of d whose values are not objects or
// arrays.
func scalarKeys(d graph.Data) []string {
	keys := make([]string, 0, len(d))
	for k, v := range d {
		switch v.(type) {
		case map[string]any, graph.Data, []any:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
