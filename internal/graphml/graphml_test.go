package graphml

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/update"
)

var (
	catKey = graph.AnnoKey{NS: "annis", Name: "cat"}
	domComponent = graph.Component{Type: graph.Dominance, Layer: "const", Name: ""}
)

func buildSampleGraph(t *testing.T) (*graph.Graph, anno.Store) {
	t.Helper()
	store := anno.NewMemStore()
	g := graph.New(t.TempDir(), store)
	wal := update.OpenWAL(t.TempDir())

	batch := update.Batch{Events: []update.Event{
		update.AddNode{Name: "doc#s1", Type: "node"},
		update.AddNodeLabel{Name: "doc#s1", NS: "annis", Key: "cat", Value: "S"},
		update.AddNode{Name: "doc#np1", Type: "node"},
		update.AddNodeLabel{Name: "doc#np1", NS: "annis", Key: "cat", Value: "NP"},
		update.AddEdge{
			Source: "doc#s1", Target: "doc#np1",
			Layer: "const", CType: string(graph.Dominance), CName: "",
			Labels: map[string]string{"annis::func": "SB"},
		},
	}}
	require.NoError(t, g.ApplyUpdate(context.Background(), wal, batch, false))
	return g, store
}

func TestExportProducesWellFormedDocument(t *testing.T) {
	g, store := buildSampleGraph(t)

	var buf bytes.Buffer
	err := Export(&buf, g, store, []graph.Component{domComponent}, []graph.AnnoKey{catKey}, nil, Options{StableOrder: true})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<graphml")
	assert.Contains(t, out, `attr.name="annis::node_name"`)
	assert.Contains(t, out, `attr.name="annis::cat"`)
	assert.Contains(t, out, "S")
	assert.Contains(t, out, "NP")
	assert.Contains(t, out, `label="Dominance/const/"`)
}

func TestExportStableOrderIsDeterministicAcrossRuns(t *testing.T) {
	g, store := buildSampleGraph(t)

	var a, b bytes.Buffer
	opts := Options{StableOrder: true}
	require.NoError(t, Export(&a, g, store, []graph.Component{domComponent}, []graph.AnnoKey{catKey}, nil, opts))
	require.NoError(t, Export(&b, g, store, []graph.Component{domComponent}, []graph.AnnoKey{catKey}, nil, opts))
	assert.Equal(t, a.String(), b.String())
}

func TestImportRoundTripsNodesAndEdges(t *testing.T) {
	g, store := buildSampleGraph(t)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, g, store, []graph.Component{domComponent}, []graph.AnnoKey{catKey}, []graph.AnnoKey{{NS: "annis", Name: "func"}}, Options{StableOrder: true}))

	batch, err := Import(&buf)
	require.NoError(t, err)

	store2 := anno.NewMemStore()
	g2 := graph.New(t.TempDir(), store2)
	wal2 := update.OpenWAL(t.TempDir())
	require.NoError(t, g2.ApplyUpdate(context.Background(), wal2, batch, false))

	has, err := store2.HasNodeName("doc#s1")
	require.NoError(t, err)
	assert.True(t, has)

	id, ok, err := store2.GetNodeIDFromName("doc#s1")
	require.NoError(t, err)
	require.True(t, ok)
	value, ok, err := store2.Get(anno.NodeItem(id), catKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "S", value)

	storage, ok := g2.Storage(domComponent)
	require.True(t, ok)
	npID, ok, err := store2.GetNodeIDFromName("doc#np1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, storage.OutgoingEdges(id), npID)
}

func TestExportZIPImportZIPRoundTripsMultipleCorpora(t *testing.T) {
	g, store := buildSampleGraph(t)

	var buf bytes.Buffer
	err := ExportZIP(&buf, []CorpusExport{
		{Name: "tiger", Graph: g, Store: store, Components: []graph.Component{domComponent}, NodeKeys: []graph.AnnoKey{catKey}},
		{Name: "pcc2", Graph: g, Store: store, Components: []graph.Component{domComponent}, NodeKeys: []graph.AnnoKey{catKey}},
	}, Options{StableOrder: true})
	require.NoError(t, err)

	batches, err := ImportZIP(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Contains(t, batches, "tiger")
	assert.Contains(t, batches, "pcc2")
	assert.NotEmpty(t, batches["tiger"].Events)
}
