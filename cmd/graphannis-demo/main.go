// Command graphannis-demo is a tiny end-to-end walkthrough of this
// module's public surface: open a corpus storage directory, apply a batch
// of updates, compile and run an AQL query, and log its match and document
// counts.
//
// Grounded on cmd/main/main.go's (teacher) structure of a single init-like
// bootstrap sequence followed by a thin main, adapted from an HTTP/Lambda
// listener to a one-shot CLI run since this module has no outer transport
// layer of its own (spec Non-goals: "no C-ABI, no server binary").
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/graphannis-go/graphannis-core/internal/corpusstorage"
	"github.com/graphannis-go/graphannis-core/internal/update"
	"github.com/graphannis-go/graphannis-core/pkg/observability"
)

func main() {
	dir := flag.String("dir", "", "corpus storage directory")
	corpus := flag.String("corpus", "demo", "corpus name")
	query := flag.String("query", `annis::cat="S"`, "AQL query to run")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.InitTracing("graphannis-demo")
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	if err := run(logger, *dir, *corpus, *query); err != nil {
		logger.Fatal("demo run failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, dir, corpus, query string) error {
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "graphannis-demo-*")
		if err != nil {
			return err
		}
		logger.Info("using scratch corpus storage directory", zap.String("dir", dir))
	}
	if err := os.MkdirAll(filepath.Join(dir, corpus), 0o755); err != nil {
		return err
	}

	cs, err := corpusstorage.ProvideCorpusStorage(dir, corpusstorage.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer cs.Close()

	ctx := context.Background()
	batch := update.Batch{Events: []update.Event{
		update.AddNode{Name: corpus + "/doc#s1", Type: "node"},
		update.AddNodeLabel{Name: corpus + "/doc#s1", NS: "annis", Key: "cat", Value: "S"},
		update.AddNode{Name: corpus + "/doc#np1", Type: "node"},
		update.AddNodeLabel{Name: corpus + "/doc#np1", NS: "annis", Key: "cat", Value: "NP"},
	}}
	if err := cs.ApplyUpdate(ctx, corpus, batch, false); err != nil {
		return err
	}

	qr, err := cs.Compile(ctx, corpus, query, false)
	if err != nil {
		return err
	}
	count, err := cs.Count(ctx, qr)
	if err != nil {
		return err
	}
	logger.Info("query result", zap.String("query", query), zap.Int("matches", count.MatchCount), zap.Int("documents", count.DocumentCount))
	return nil
}
