package anno

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"iter"

	bolt "go.etcd.io/bbolt"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// DiskStore is the disk-resident annotation store variant of spec §4.1.
// It keeps a bounded in-memory table (c0) mirrored to a "pending" bucket
// for crash recovery, and compacts into the "c1" bucket once c0 grows past
// c0Limit. Both buckets are plain bbolt buckets rather than a
// purpose-built log-structured merge tree — bbolt's own B+tree already
// gives sorted iteration and crash-safe commits, so there is no need to
// reimplement compaction machinery on top of it.
//
// Grounded on eliasdb's graph-globals.go prefix-bucket layout
// (other_examples/krotik-eliasdb): forward lookups are keyed by item,
// value lookups by a second bucket keyed by (key,value,item) so range and
// regex scans never need a full table scan.
type DiskStore struct {
	db      *bolt.DB
	c0      map[ItemID]map[graph.AnnoKey]string
	c0Limit int
	nodeNameToID map[string]graph.NodeID
}

var (
	bucketForward  = []byte("c1_forward")
	bucketByValue  = []byte("c1_byvalue")
	bucketPending  = []byte("c0_pending")
	bucketNodeName = []byte("node_names")
)

// OpenDiskStore opens (creating if absent) the bbolt file backing one
// corpus's annotation store.
func OpenDiskStore(path string, c0Limit int) (*DiskStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, goerrors.NewStorageIO("opening annotation store", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketForward, bucketByValue, bucketPending, bucketNodeName} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, goerrors.NewStorageIO("initializing annotation store", err)
	}
	s := &DiskStore{db: db, c0: make(map[ItemID]map[graph.AnnoKey]string), c0Limit: c0Limit, nodeNameToID: make(map[string]graph.NodeID)}
	if err := s.replayPending(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) replayPending() error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPending).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			item, key, err := decodeForwardKey(k)
			if err != nil {
				return err
			}
			m, ok := s.c0[item]
			if !ok {
				m = make(map[graph.AnnoKey]string)
				s.c0[item] = m
			}
			m[key] = string(v)
			if key == graph.NodeNameKey {
				s.nodeNameToID[string(v)] = item.Node
			}
		}
		return nil
	})
}

func encodeItem(item ItemID) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(item.Kind))
	if item.Kind == graph.ItemNode {
		binary.Write(&buf, binary.BigEndian, int64(item.Node))
	} else {
		buf.WriteByte(0) // placeholder separator; edges are keyed by component+src+tgt below
		binary.Write(&buf, binary.BigEndian, int64(item.Edge.Source))
		binary.Write(&buf, binary.BigEndian, int64(item.Edge.Target))
		buf.WriteString(string(item.Edge.Component.Type))
		buf.WriteByte(0)
		buf.WriteString(item.Edge.Component.Layer)
		buf.WriteByte(0)
		buf.WriteString(item.Edge.Component.Name)
	}
	return buf.Bytes()
}

func encodeForwardKey(item ItemID, key graph.AnnoKey) []byte {
	var buf bytes.Buffer
	buf.Write(encodeItem(item))
	buf.WriteByte(0xff)
	buf.WriteString(key.NS)
	buf.WriteByte(0)
	buf.WriteString(key.Name)
	return buf.Bytes()
}

// decodeForwardKey recovers (item,key) from an encodeForwardKey row.
func decodeForwardKey(k []byte) (ItemID, graph.AnnoKey, error) {
	parts := bytes.SplitN(k, []byte{0xff}, 2)
	if len(parts) != 2 {
		return ItemID{}, graph.AnnoKey{}, goerrors.NewCorrupted("malformed annotation store key")
	}
	itemBytes, keyBytes := parts[0], parts[1]
	kv := bytes.SplitN(keyBytes, []byte{0}, 2)
	anno := graph.AnnoKey{NS: string(kv[0])}
	if len(kv) > 1 {
		anno.Name = string(kv[1])
	}
	item, err := decodeItem(itemBytes)
	return item, anno, err
}

func decodeItem(b []byte) (ItemID, error) {
	if len(b) == 0 {
		return ItemID{}, goerrors.NewCorrupted("empty item bytes")
	}
	switch graph.ItemKind(b[0]) {
	case graph.ItemNode:
		if len(b) < 9 {
			return ItemID{}, goerrors.NewCorrupted("truncated node item bytes")
		}
		n := int64(binary.BigEndian.Uint64(b[1:9]))
		return NodeItem(graph.NodeID(n)), nil
	case graph.ItemEdge:
		if len(b) < 18 {
			return ItemID{}, goerrors.NewCorrupted("truncated edge item bytes")
		}
		src := graph.NodeID(int64(binary.BigEndian.Uint64(b[2:10])))
		tgt := graph.NodeID(int64(binary.BigEndian.Uint64(b[10:18])))
		rest := bytes.SplitN(b[18:], []byte{0}, 3)
		comp := graph.Component{}
		if len(rest) > 0 {
			comp.Type = graph.ComponentType(rest[0])
		}
		if len(rest) > 1 {
			comp.Layer = string(rest[1])
		}
		if len(rest) > 2 {
			comp.Name = string(rest[2])
		}
		return EdgeItem(graph.EdgeID{Component: comp, Source: src, Target: tgt}), nil
	default:
		return ItemID{}, goerrors.NewCorrupted("unknown item kind")
	}
}

func (s *DiskStore) Get(item ItemID, key graph.AnnoKey) (string, bool, error) {
	if m, ok := s.c0[item]; ok {
		if v, ok := m[key]; ok {
			return v, true, nil
		}
	}
	var value string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketForward).Get(encodeForwardKey(item, key))
		if v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

func (s *DiskStore) Set(item ItemID, key graph.AnnoKey, value string) error {
	if key == graph.NodeNameKey {
		if existing, ok := s.nodeNameToID[value]; ok && existing != item.Node {
			return goerrors.NewInvalidUpdate("node name already in use: " + value)
		}
	}
	if old, ok, _ := s.Get(item, key); ok && old == value {
		return nil
	}

	m, ok := s.c0[item]
	if !ok {
		m = make(map[graph.AnnoKey]string)
		s.c0[item] = m
	}
	m[key] = value
	if key == graph.NodeNameKey {
		s.nodeNameToID[value] = item.Node
	}

	fk := encodeForwardKey(item, key)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).Put(fk, []byte(value))
	}); err != nil {
		return goerrors.NewStorageIO("writing annotation", err)
	}

	if len(s.c0) >= s.c0Limit {
		return s.compact()
	}
	return nil
}

// compact moves everything from c0/pending into c1 (forward + byvalue),
// then clears c0/pending. This is the "bounded in-memory table C0 ...
// compacted on-disk table C1" of spec §4.1.
func (s *DiskStore) compact() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		forward := tx.Bucket(bucketForward)
		byValue := tx.Bucket(bucketByValue)
		for item, m := range s.c0 {
			for key, value := range m {
				fk := encodeForwardKey(item, key)
				if old := forward.Get(fk); old != nil {
					if err := byValue.Delete(byValueKey(key, string(old), item)); err != nil {
						return err
					}
				}
				if err := forward.Put(fk, []byte(value)); err != nil {
					return err
				}
				if err := byValue.Put(byValueKey(key, value, item), nil); err != nil {
					return err
				}
			}
		}
		pending := tx.Bucket(bucketPending)
		c := pending.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := pending.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return goerrors.NewStorageIO("compacting annotation store", err)
	}
	s.c0 = make(map[ItemID]map[graph.AnnoKey]string)
	return nil
}

func byValueKey(key graph.AnnoKey, value string, item ItemID) []byte {
	var buf bytes.Buffer
	buf.WriteString(key.NS)
	buf.WriteByte(0)
	buf.WriteString(key.Name)
	buf.WriteByte(0xff)
	buf.WriteString(value)
	buf.WriteByte(0xff)
	buf.Write(encodeItem(item))
	return buf.Bytes()
}

func byValuePrefix(key graph.AnnoKey, value string) []byte {
	var buf bytes.Buffer
	buf.WriteString(key.NS)
	buf.WriteByte(0)
	buf.WriteString(key.Name)
	buf.WriteByte(0xff)
	buf.WriteString(value)
	return buf.Bytes()
}

func (s *DiskStore) Remove(item ItemID, key graph.AnnoKey) error {
	old, found, err := s.Get(item, key)
	if err != nil || !found {
		return err
	}
	delete(s.c0[item], key)
	if key == graph.NodeNameKey {
		delete(s.nodeNameToID, old)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		fk := encodeForwardKey(item, key)
		if err := tx.Bucket(bucketForward).Delete(fk); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPending).Delete(fk); err != nil {
			return err
		}
		return tx.Bucket(bucketByValue).Delete(byValueKey(key, old, item))
	})
}

func (s *DiskStore) RemoveItem(item ItemID) error {
	keys := make(map[graph.AnnoKey]string)
	if m, ok := s.c0[item]; ok {
		for k, v := range m {
			keys[k] = v
		}
	}
	prefix := encodeItem(item)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketForward).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			_, anno, decErr := decodeForwardKey(k)
			if decErr == nil {
				keys[anno] = string(v)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for key := range keys {
		if err := s.Remove(item, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiskStore) HasNodeName(name string) (bool, error) {
	_, ok := s.nodeNameToID[name]
	return ok, nil
}

func (s *DiskStore) GetNodeIDFromName(name string) (graph.NodeID, bool, error) {
	id, ok := s.nodeNameToID[name]
	return id, ok, nil
}

func (s *DiskStore) AnnoByKey(key graph.AnnoKey) iter.Seq[ItemID] {
	prefix := []byte(key.NS + "\x00" + key.Name + "\xff")
	var items []ItemID
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketByValue).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if it, ok := itemFromByValueKey(k); ok {
				items = append(items, it)
			}
		}
		return nil
	})
	seen := make(map[ItemID]bool, len(items))
	for _, it := range items {
		seen[it] = true
	}
	for item, m := range s.c0 {
		if _, ok := m[key]; ok && !seen[item] {
			items = append(items, item)
		}
	}
	return func(yield func(ItemID) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
}

func itemFromByValueKey(k []byte) (ItemID, bool) {
	idx := bytes.LastIndexByte(k, 0xff)
	if idx < 0 || idx+1 >= len(k) {
		return ItemID{}, false
	}
	item, err := decodeItem(k[idx+1:])
	return item, err == nil
}

func (s *DiskStore) RegexScan(key graph.AnnoKey, pattern string) (iter.Seq[ItemID], error) {
	re, err := CompileRegex2(pattern)
	if err != nil {
		return nil, goerrors.NewParse("invalid regex: " + err.Error())
	}
	seen := make(map[ItemID]bool)
	prefix := []byte(key.NS + "\x00" + key.Name + "\xff")
	var items []ItemID
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketByValue).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			rest := k[len(prefix):]
			valEnd := bytes.IndexByte(rest, 0xff)
			if valEnd < 0 {
				continue
			}
			value := string(rest[:valEnd])
			if MatchRegex2(re, value) {
				if it, ok := itemFromByValueKey(k); ok && !seen[it] {
					if _, pending := s.c0[it][key]; pending {
						continue
					}
					seen[it] = true
					items = append(items, it)
				}
			}
		}
		return nil
	})
	for item, m := range s.c0 {
		if v, ok := m[key]; ok && !seen[item] && MatchRegex2(re, v) {
			seen[item] = true
			items = append(items, item)
		}
	}
	return func(yield func(ItemID) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}, nil
}

func (s *DiskStore) GuessMaxCount(key graph.AnnoKey, lower, upper string) (uint64, error) {
	lo := byValuePrefix(key, lower)
	hi := byValuePrefix(key, upper+"\xff\xff")
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketByValue).Cursor()
		for k, _ := c.Seek(lo); k != nil && bytes.Compare(k, hi) < 0; k, _ = c.Next() {
			count++
		}
		return nil
	})
	for _, m := range s.c0 {
		if v, ok := m[key]; ok && v >= lower && v < upper+"\xff" {
			count++
		}
	}
	return count, err
}

func (s *DiskStore) GuessMaxCountRegex(key graph.AnnoKey, pattern string) (uint64, error) {
	prefix, exact := literalPrefix(pattern)
	if prefix == "" && !exact {
		prefixBytes := []byte(key.NS + "\x00" + key.Name + "\xff")
		var count uint64
		err := s.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketByValue).Cursor()
			for k, _ := c.Seek(prefixBytes); k != nil && bytes.HasPrefix(k, prefixBytes); k, _ = c.Next() {
				count++
			}
			return nil
		})
		for _, m := range s.c0 {
			if _, ok := m[key]; ok {
				count++
			}
		}
		return count, err
	}
	return s.GuessMaxCount(key, prefix, prefix)
}

func (s *DiskStore) Close() error { return s.db.Close() }

func init() {
	// Ensure gob knows how to encode graph.AnnoKey if anything ever
	// gob-serializes a DiskStore snapshot (the WAL does; see
	// internal/update).
	gob.Register(graph.AnnoKey{})
}
