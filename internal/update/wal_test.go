package update

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALWriteReplayCommit(t *testing.T) {
	dir := t.TempDir()
	wal := OpenWAL(dir)

	batch := Batch{Events: []Event{
		AddNode{base: base{ChangeID: 1}, Name: "n1", Type: "node"},
		AddNodeLabel{base: base{ChangeID: 2}, Name: "n1", NS: "default_ns", Key: "pos", Value: "NN"},
		AddEdge{base: base{ChangeID: 3}, Source: "n1", Target: "n2", Layer: "annis", CType: "Pointing", CName: "dep"},
	}}

	require.NoError(t, wal.Write(batch))

	replayed, err := wal.Replay()
	require.NoError(t, err)
	require.Len(t, replayed, 3)

	assert.Equal(t, AddNode{base: base{ChangeID: 1}, Name: "n1", Type: "node"}, replayed[0])
	assert.IsType(t, AddNodeLabel{}, replayed[1])
	assert.IsType(t, AddEdge{}, replayed[2])

	require.NoError(t, wal.Commit())
	replayed, err = wal.Replay()
	require.NoError(t, err)
	assert.Empty(t, replayed)
}

func TestWALReplayMissingFile(t *testing.T) {
	wal := OpenWAL(filepath.Join(t.TempDir(), "does-not-exist"))
	events, err := wal.Replay()
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestWALCommitWithoutWrite(t *testing.T) {
	wal := OpenWAL(t.TempDir())
	assert.NoError(t, wal.Commit())
}
