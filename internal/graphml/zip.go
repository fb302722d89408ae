package graphml

import (
	"archive/zip"
	"io"
	"sort"
	"strings"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/update"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// CorpusExport describes one corpus's contribution to an ExportZIP call.
type CorpusExport struct {
	Name       string
	Graph      *graph.Graph
	Store      anno.Store
	Components []graph.Component
	NodeKeys   []graph.AnnoKey
	EdgeKeys   []graph.AnnoKey
}

// ExportZIP writes one ZIP archive holding every corpus in corpora, each as
// its own "<name>/corpus.graphml" entry, per spec §6's bulk export. The
// underlying archive/zip.Writer promotes an entry to the ZIP64 extension
// automatically once its size exceeds the 32-bit format's limit, so no
// size is declared up front and no separate zip64 writer is needed.
func ExportZIP(w io.Writer, corpora []CorpusExport, opts Options) error {
	ordered := append([]CorpusExport(nil), corpora...)
	if opts.StableOrder {
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	}

	zw := zip.NewWriter(w)
	for _, c := range ordered {
		entry, err := zw.Create(c.Name + "/corpus.graphml")
		if err != nil {
			return goerrors.NewStorageIO("creating zip entry for "+c.Name, err)
		}
		if err := Export(entry, c.Graph, c.Store, c.Components, c.NodeKeys, c.EdgeKeys, opts); err != nil {
			return err
		}
	}
	return goerrors.Wrap(zw.Close(), "closing zip archive")
}

// ImportZIP reads an archive produced by ExportZIP and returns one
// update.Batch per corpus, keyed by the corpus name recovered from the
// entry path's leading directory component.
func ImportZIP(r io.ReaderAt, size int64) (map[string]update.Batch, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, goerrors.Wrap(goerrors.NewCorrupted("opening zip archive"), err.Error())
	}

	out := make(map[string]update.Batch)
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, "/corpus.graphml") {
			continue
		}
		name := strings.TrimSuffix(f.Name, "/corpus.graphml")

		rc, err := f.Open()
		if err != nil {
			return nil, goerrors.NewStorageIO("opening zip entry "+f.Name, err)
		}
		batch, err := Import(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, goerrors.NewStorageIO("closing zip entry "+f.Name, closeErr)
		}
		out[name] = batch
	}
	return out, nil
}
