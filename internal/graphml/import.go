package graphml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/update"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

type xmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
}

type xmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlNode struct {
	ID   string    `xml:"id,attr"`
	Data []xmlData `xml:"data"`
}

type xmlEdge struct {
	ID     string    `xml:"id,attr"`
	Source string    `xml:"source,attr"`
	Target string    `xml:"target,attr"`
	Label  string    `xml:"label,attr"`
	Data   []xmlData `xml:"data"`
}

type xmlGraph struct {
	Nodes []xmlNode `xml:"node"`
	Edges []xmlEdge `xml:"edge"`
}

type xmlDoc struct {
	Keys  []xmlKey `xml:"key"`
	Graph xmlGraph `xml:"graph"`
}

// Import parses a document written by Export back into an update.Batch
// that reconstructs the same nodes, edges, and annotations when applied
// via graph.Graph.ApplyUpdate (spec §6's round-trip property). Node
// identifiers are taken from each node's annis::node_name data item, not
// from the GraphML "id" attribute, so the resulting batch is independent
// of how Export happened to number its elements.
func Import(r io.Reader) (update.Batch, error) {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return update.Batch{}, goerrors.Wrap(goerrors.NewCorrupted("decoding graphml document"), err.Error())
	}

	attrByID := make(map[string]string, len(doc.Keys))
	for _, k := range doc.Keys {
		attrByID[k.ID] = k.AttrName
	}

	nameByElemID := make(map[string]string, len(doc.Graph.Nodes))
	var events []update.Event

	for _, n := range doc.Graph.Nodes {
		attrs := dataByAttrName(n.Data, attrByID)
		name, ok := attrs[graph.NodeNameKey.String()]
		if !ok {
			return update.Batch{}, goerrors.NewCorrupted(fmt.Sprintf("node %s is missing %s", n.ID, graph.NodeNameKey.String()))
		}
		nameByElemID[n.ID] = name

		nodeType := attrs[graph.NodeTypeKey.String()]
		events = append(events, update.AddNode{Name: name, Type: nodeType})

		for key, value := range attrs {
			if key == graph.NodeNameKey.String() {
				continue
			}
			ns, local := splitAttr(key)
			events = append(events, update.AddNodeLabel{Name: name, NS: ns, Key: local, Value: value})
		}
	}

	for _, e := range doc.Graph.Edges {
		source, ok := nameByElemID[e.Source]
		if !ok {
			return update.Batch{}, goerrors.NewCorrupted("edge references unknown source " + e.Source)
		}
		target, ok := nameByElemID[e.Target]
		if !ok {
			return update.Batch{}, goerrors.NewCorrupted("edge references unknown target " + e.Target)
		}
		c, err := parseComponentLabel(e.Label)
		if err != nil {
			return update.Batch{}, err
		}

		labels := make(map[string]string)
		for key, value := range dataByAttrName(e.Data, attrByID) {
			labels[key] = value
		}
		events = append(events, update.AddEdge{
			Source: source, Target: target,
			Layer: c.Layer, CType: string(c.Type), CName: c.Name,
			Labels: labels,
		})
	}

	return update.Batch{Events: events}, nil
}

func dataByAttrName(items []xmlData, attrByID map[string]string) map[string]string {
	out := make(map[string]string, len(items))
	for _, d := range items {
		if name, ok := attrByID[d.Key]; ok {
			out[name] = d.Value
		}
	}
	return out
}

func splitAttr(flat string) (ns, name string) {
	if i := strings.Index(flat, "::"); i >= 0 {
		return flat[:i], flat[i+2:]
	}
	return "", flat
}

func parseComponentLabel(label string) (graph.Component, error) {
	parts := strings.SplitN(label, "/", 3)
	if len(parts) != 3 {
		return graph.Component{}, goerrors.NewCorrupted("malformed component label " + label)
	}
	return graph.Component{Type: graph.ComponentType(parts[0]), Layer: parts[1], Name: parts[2]}, nil
}
