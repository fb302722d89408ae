package update

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

func init() {
	gob.Register(AddNode{})
	gob.Register(DeleteNode{})
	gob.Register(AddNodeLabel{})
	gob.Register(DeleteNodeLabel{})
	gob.Register(AddEdge{})
	gob.Register(DeleteEdge{})
	gob.Register(AddEdgeLabel{})
	gob.Register(DeleteEdgeLabel{})
}

// WAL is the write-ahead log of spec §4.3: a sequence of gob-encoded
// UpdateEvents, fsync'd and truncated on a successful apply_update, left
// intact on partial failure so the next open can replay from the last
// committed change id.
//
// Grounded on infrastructure/persistence/dynamodb/unit_of_work.go's
// Begin/Register/Commit bracket (teacher), adapted from a DynamoDB
// transact-items buffer to a length-prefixed binary file, since the WAL
// is never read by anything outside this module (no third-party wire
// format applies here — see DESIGN.md).
type WAL struct {
	mu   sync.Mutex
	path string
}

func OpenWAL(corpusDir string) *WAL {
	return &WAL{path: filepath.Join(corpusDir, "wal.log")}
}

// Write appends batch to the WAL file and fsyncs it. It does not truncate:
// that only happens once the caller has finished applying the batch to
// storages (Commit).
func (w *WAL) Write(batch Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return goerrors.NewStorageIO("opening WAL", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var buf []byte
	for _, ev := range batch.Events {
		enc, err := encodeEvent(ev)
		if err != nil {
			return goerrors.NewStorageIO("encoding WAL event", err)
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, enc...)
	}
	if _, err := bw.Write(buf); err != nil {
		return goerrors.NewStorageIO("writing WAL", err)
	}
	if err := bw.Flush(); err != nil {
		return goerrors.NewStorageIO("flushing WAL", err)
	}
	return goerrors.Wrap(f.Sync(), "fsyncing WAL")
}

// Commit truncates the WAL file to empty, signaling every event in it was
// durably applied to the graph's storages.
func (w *WAL) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.Truncate(w.path, 0); err != nil && !os.IsNotExist(err) {
		return goerrors.NewStorageIO("truncating WAL", err)
	}
	return nil
}

// Replay reads every batch left in the WAL (non-empty only after a crash
// mid-apply) and returns the flattened event list in order.
func (w *WAL) Replay() ([]Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.NewStorageIO("opening WAL for replay", err)
	}
	defer f.Close()

	var events []Event
	r := bufio.NewReader(f)
	for {
		var lenBuf [4]byte
		_, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, goerrors.NewCorrupted("truncated WAL length prefix")
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, goerrors.NewCorrupted("truncated WAL event payload")
		}
		ev, err := decodeEvent(payload)
		if err != nil {
			return nil, goerrors.NewCorrupted("malformed WAL event: " + err.Error())
		}
		events = append(events, ev)
	}
	return events, nil
}

func encodeEvent(ev Event) ([]byte, error) {
	var buf writeBuffer
	if err := gob.NewEncoder(&buf).Encode(&ev); err != nil {
		return nil, err
	}
	return buf.data, nil
}

func decodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := gob.NewDecoder(&readBuffer{data: payload}).Decode(&ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// writeBuffer/readBuffer avoid pulling in bytes.Buffer just to satisfy
// io.Writer/io.Reader for gob, keeping this file's imports minimal.
type writeBuffer struct{ data []byte }

func (b *writeBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

type readBuffer struct {
	data []byte
	pos  int
}

func (b *readBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
