package graphquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osfiler/osfiler/domain/graph"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PERSON", "#FF6384"},
		{"person", "#FF6384"},
		{"social profile", "#00BCD4"},
		{"CRYPTO_WALLET", DefaultColor},
		{"", DefaultColor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColorFor(tt.in), tt.in)
	}
}

func TestToVisNode(t *testing.T) {
	n := graph.Node{
		ID:              "n1",
		InvestigationID: "inv",
		Type:            "PERSON",
		Name:            "<b>Jane</b>",
		Data: graph.Data{
			"a": "1", "b": "2", "c": "3", "d": "4", "e": "5", "f": "6",
			"nested": map[string]any{"x": 1},
		},
		CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	v := toVisNode(n)
	assert.Equal(t, "<b>Jane</b>\n(PERSON)", v.Label)
	assert.Equal(t, "#FF6384", v.Color)
	assert.Equal(t, "dot", v.Shape)
	assert.Equal(t, "inv", v.InvestigationID)

	assert.Contains(t, v.Title, "&lt;b&gt;Jane&lt;/b&gt;")
	assert.NotContains(t, v.Title, "<b>Jane")
	assert.Contains(t, v.Title, "<div><b>e:</b> 5</div>")
	assert.NotContains(t, v.Title, "<b>f:</b>")
	assert.NotContains(t, v.Title, "nested")
	assert.Contains(t, v.Title, "... and 2 more properties")
	assert.Contains(t, v.Title, "Created: 2024-03-01 09:30")
}

func TestToVisEdge(t *testing.T) {
	e := toVisEdge(graph.Relationship{
		ID:           "r1",
		SourceNodeID: "a",
		TargetNodeID: "b",
		Type:         "HAS_EMAIL",
		Strength:     0.9,
		Data:         graph.Data{"id": "ignored", "source": "<script>", "list": []any{1}},
	})

	assert.Equal(t, "a", e.From)
	assert.Equal(t, "b", e.To)
	assert.Equal(t, "to", e.Arrows)
	assert.InDelta(t, 5.5, e.Width, 1e-9)
	assert.Equal(t, "Relationship: HAS_EMAIL<br>source: &lt;script&gt;", e.Title)
}
