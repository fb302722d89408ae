// Package graphml implements spec §6's interchange format: a streaming
// GraphML writer/reader (Neo4j-dialect key/data elements, edges carrying a
// Component label) plus the ZIP-archive packaging for multi-corpus export.
//
// Grounded on internal/exec/subgraph.go's ensureOrderingLoaded /
// nodeAnnotations pattern of walking a fixed, caller-supplied set of
// annotation keys rather than widening anno.Store with a "list all
// annotations of an item" method: anno.Store has no such call, so neither
// does this package. Callers name the node/edge annotation keys they want
// exported, the same way subgraph.go names annis::node_name/annis::tok.
//
// Export streams via encoding/xml's token-level Encoder instead of
// building one in-memory struct tree, since a single GraphML entry
// routinely exceeds what's comfortable to hold in memory for a
// document-scale corpus (spec §6).
package graphml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// Options controls Export's traversal and emission order.
type Options struct {
	// StableOrder sorts nodes by id, edges by (layer, name, source,
	// target), and each element's data items by (namespace, name) before
	// emission, per spec §6 and testable property 4 (export then import
	// then export again yields byte-identical output).
	StableOrder bool
}

type keyDef struct {
	id       string
	forKind  string // "node" or "edge"
	ns, name string
	key      graph.AnnoKey
}

func (k keyDef) attrName() string { return k.ns + "::" + k.name }

// Export writes g's nodes (as named by graph.NodeNameKey) and the edges of
// components to w as one GraphML document. nodeKeys/edgeKeys name the
// annotation keys to carry along as <data> elements; graph.NodeNameKey is
// always included among the node keys since reconstructing a node on
// Import requires its name.
func Export(w io.Writer, g *graph.Graph, store anno.Store, components []graph.Component, nodeKeys, edgeKeys []graph.AnnoKey, opts Options) error {
	nodeKeys = ensureKey(nodeKeys, graph.NodeNameKey)

	keys := buildKeyDefs(nodeKeys, edgeKeys)

	if err := g.EnsureLoaded(components); err != nil {
		return err
	}

	nodeIDs, err := collectNodeIDs(store, opts)
	if err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return goerrors.NewStorageIO("writing graphml prolog", err)
	}

	root := xml.StartElement{Name: xml.Name{Local: "graphml"}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "xmlns"}, Value: "http://graphml.graphdrawing.org/xmlns"},
	}}
	if err := enc.EncodeToken(root); err != nil {
		return goerrors.NewStorageIO("opening graphml element", err)
	}

	for _, k := range keys {
		el := xml.StartElement{Name: xml.Name{Local: "key"}, Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: k.id},
			{Name: xml.Name{Local: "for"}, Value: k.forKind},
			{Name: xml.Name{Local: "attr.name"}, Value: k.attrName()},
			{Name: xml.Name{Local: "attr.type"}, Value: "string"},
		}}
		if err := writeEmptyElement(enc, el); err != nil {
			return err
		}
	}

	graphEl := xml.StartElement{Name: xml.Name{Local: "graph"}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "edgedefault"}, Value: "directed"},
	}}
	if err := enc.EncodeToken(graphEl); err != nil {
		return goerrors.NewStorageIO("opening graph element", err)
	}

	nodeKeyDefs := keys[:len(nodeKeys)]
	edgeKeyDefs := keys[len(nodeKeys):]

	for _, id := range nodeIDs {
		if err := writeNode(enc, store, id, nodeKeyDefs, opts); err != nil {
			return err
		}
	}

	edges, err := collectEdges(g, components, nodeIDs, opts)
	if err != nil {
		return err
	}
	for i, e := range edges {
		if err := writeEdge(enc, store, i, e, edgeKeyDefs, opts); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(graphEl.End()); err != nil {
		return goerrors.NewStorageIO("closing graph element", err)
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return goerrors.NewStorageIO("closing graphml element", err)
	}
	return enc.Flush()
}

func ensureKey(keys []graph.AnnoKey, want graph.AnnoKey) []graph.AnnoKey {
	for _, k := range keys {
		if k == want {
			return keys
		}
	}
	return append([]graph.AnnoKey{want}, keys...)
}

func buildKeyDefs(nodeKeys, edgeKeys []graph.AnnoKey) []keyDef {
	out := make([]keyDef, 0, len(nodeKeys)+len(edgeKeys))
	for i, k := range nodeKeys {
		out = append(out, keyDef{id: fmt.Sprintf("nk%d", i), forKind: "node", ns: k.NS, name: k.Name, key: k})
	}
	for i, k := range edgeKeys {
		out = append(out, keyDef{id: fmt.Sprintf("ek%d", i), forKind: "edge", ns: k.NS, name: k.Name, key: k})
	}
	return out
}

func collectNodeIDs(store anno.Store, opts Options) ([]graph.NodeID, error) {
	var ids []graph.NodeID
	for item := range store.AnnoByKey(graph.NodeNameKey) {
		if item.Kind == graph.ItemNode {
			ids = append(ids, item.Node)
		}
	}
	if opts.StableOrder {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return ids, nil
}

type edgeRef struct {
	component graph.Component
	source    graph.NodeID
	target    graph.NodeID
}

func collectEdges(g *graph.Graph, components []graph.Component, nodeIDs []graph.NodeID, opts Options) ([]edgeRef, error) {
	var out []edgeRef
	for _, c := range components {
		storage, ok := g.Storage(c)
		if !ok {
			continue
		}
		for _, source := range nodeIDs {
			for _, target := range storage.OutgoingEdges(source) {
				out = append(out, edgeRef{component: c, source: source, target: target})
			}
		}
	}
	if opts.StableOrder {
		sort.Slice(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.component.Layer != b.component.Layer {
				return a.component.Layer < b.component.Layer
			}
			if a.component.Name != b.component.Name {
				return a.component.Name < b.component.Name
			}
			if a.source != b.source {
				return a.source < b.source
			}
			return a.target < b.target
		})
	}
	return out, nil
}

func writeNode(enc *xml.Encoder, store anno.Store, id graph.NodeID, keys []keyDef, opts Options) error {
	el := xml.StartElement{Name: xml.Name{Local: "node"}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "id"}, Value: nodeElemID(id)},
	}}
	if err := enc.EncodeToken(el); err != nil {
		return goerrors.NewStorageIO("opening node element", err)
	}
	if err := writeData(enc, store, anno.NodeItem(id), keys, opts); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func writeEdge(enc *xml.Encoder, store anno.Store, index int, e edgeRef, keys []keyDef, opts Options) error {
	eid := graph.EdgeID{Component: e.component, Source: e.source, Target: e.target}
	el := xml.StartElement{Name: xml.Name{Local: "edge"}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "id"}, Value: "e" + strconv.Itoa(index)},
		{Name: xml.Name{Local: "source"}, Value: nodeElemID(e.source)},
		{Name: xml.Name{Local: "target"}, Value: nodeElemID(e.target)},
		{Name: xml.Name{Local: "label"}, Value: e.component.String()},
	}}
	if err := enc.EncodeToken(el); err != nil {
		return goerrors.NewStorageIO("opening edge element", err)
	}
	if err := writeData(enc, store, anno.EdgeItem(eid), keys, opts); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func writeData(enc *xml.Encoder, store anno.Store, item anno.ItemID, keys []keyDef, opts Options) error {
	type kv struct {
		k     keyDef
		value string
	}
	var present []kv
	for _, k := range keys {
		v, ok, err := store.Get(item, k.key)
		if err != nil {
			return err
		}
		if ok {
			present = append(present, kv{k, v})
		}
	}
	if opts.StableOrder {
		sort.Slice(present, func(i, j int) bool {
			if present[i].k.ns != present[j].k.ns {
				return present[i].k.ns < present[j].k.ns
			}
			return present[i].k.name < present[j].k.name
		})
	}
	for _, p := range present {
		el := xml.StartElement{Name: xml.Name{Local: "data"}, Attr: []xml.Attr{
			{Name: xml.Name{Local: "key"}, Value: p.k.id},
		}}
		if err := enc.EncodeToken(el); err != nil {
			return goerrors.NewStorageIO("opening data element", err)
		}
		if err := enc.EncodeToken(xml.CharData(p.value)); err != nil {
			return goerrors.NewStorageIO("writing data value", err)
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return goerrors.NewStorageIO("closing data element", err)
		}
	}
	return nil
}

func writeEmptyElement(enc *xml.Encoder, el xml.StartElement) error {
	if err := enc.EncodeToken(el); err != nil {
		return goerrors.NewStorageIO("writing element", err)
	}
	return enc.EncodeToken(el.End())
}

func nodeElemID(id graph.NodeID) string {
	return "n" + strconv.FormatInt(int64(id), 10)
}
