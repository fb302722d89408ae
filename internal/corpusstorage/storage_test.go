package corpusstorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphannis-go/graphannis-core/internal/exec"
	"github.com/graphannis-go/graphannis-core/internal/update"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

func mustOpen(t *testing.T) (*CorpusStorage, string) {
	t.Helper()
	dir := t.TempDir()
	cs, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs, dir
}

func TestOpenCreatesAndReleasesLockFile(t *testing.T) {
	cs, dir := mustOpen(t)
	lockPath := filepath.Join(dir, "corpus-storage.lock")
	_, err := os.Stat(lockPath)
	assert.NoError(t, err)

	require.NoError(t, cs.Close())
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenSecondInstanceAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	cs, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	_, err = Open(dir, Options{})
	require.Error(t, err)
	assert.True(t, goerrors.IsAlreadyLocked(err))
}

func TestListCorporaDoesNotLoadGraphs(t *testing.T) {
	cs, dir := mustOpen(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tiger"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pcc2"), 0o755))

	names, err := cs.ListCorpora()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tiger", "pcc2"}, names)
	assert.Empty(t, cs.cache.Names())
}

func TestGetUnknownCorpusIsNoSuchCorpus(t *testing.T) {
	cs, _ := mustOpen(t)
	_, err := cs.Get("does-not-exist")
	require.Error(t, err)
	assert.True(t, goerrors.IsNoSuchCorpus(err))
}

func TestApplyUpdateThenGetIsConsistent(t *testing.T) {
	cs, dir := mustOpen(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tiger"), 0o755))

	batch := update.Batch{Events: []update.Event{
		update.AddNode{Name: "tiger/doc#t1", Type: "node"},
		update.AddNodeLabel{Name: "tiger/doc#t1", NS: "annis", Key: "cat", Value: "S"},
	}}
	require.NoError(t, cs.ApplyUpdate(context.Background(), "tiger", batch, false))

	entry, err := cs.Get("tiger")
	require.NoError(t, err)
	has, err := entry.Anno.HasNodeName("tiger/doc#t1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCompileCountFindMatchSimpleQuery(t *testing.T) {
	cs, dir := mustOpen(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tiger"), 0o755))

	batch := update.Batch{Events: []update.Event{
		update.AddNode{Name: "tiger/doc#s1", Type: "node"},
		update.AddNodeLabel{Name: "tiger/doc#s1", NS: "annis", Key: "cat", Value: "S"},
		update.AddNode{Name: "tiger/doc#s2", Type: "node"},
		update.AddNodeLabel{Name: "tiger/doc#s2", NS: "annis", Key: "cat", Value: "NP"},
	}}
	require.NoError(t, cs.ApplyUpdate(context.Background(), "tiger", batch, false))

	qr, err := cs.Compile(context.Background(), "tiger", `annis::cat="S"`, false)
	require.NoError(t, err)

	count, err := cs.Count(context.Background(), qr)
	require.NoError(t, err)
	assert.Equal(t, 1, count.MatchCount)

	tuples, err := cs.Find(context.Background(), qr, exec.FindOptions{})
	require.NoError(t, err)
	require.Len(t, tuples, 1)
}

func TestApplyUpdateUnknownCorpusPropagatesNoSuchCorpus(t *testing.T) {
	cs, _ := mustOpen(t)
	err := cs.ApplyUpdate(context.Background(), "missing", update.Batch{}, false)
	require.Error(t, err)
	assert.True(t, goerrors.IsNoSuchCorpus(err))
}

func TestRecoverFromBackupPromotesBackupFiles(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backup")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "marker.txt"), []byte("from-backup"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("stale"), 0o644))

	require.NoError(t, recoverFromBackup(dir))

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "from-backup", string(data))
	_, err = os.Stat(backupDir)
	assert.True(t, os.IsNotExist(err))
}
