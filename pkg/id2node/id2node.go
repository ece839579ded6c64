// Package id2node implements the persistent, bidirectional NodeID⇄Node
// map backing every webgraph directory's id2node/ subdirectory.
//
// The store is backed by BadgerDB, giving append-mostly writes,
// restartable unordered iteration, and crash-safe durability via
// Badger's own WAL, without the core having to implement an LSM tree
// itself.
package id2node

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/orneryd/webgraph/pkg/node"
)

// Key prefixes, mirroring the node/edge prefix scheme of a badger-backed
// property store but reduced to the two directions id2node needs.
const (
	prefixID2Node = byte(0x01) // id2node:id -> node string
	prefixNode2ID = byte(0x02) // node2id:node string -> id
)

// Db is a persistent bidirectional NodeID⇄Node map.
type Db struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if absent) the id2node store rooted at dir.
func Open(dir string) (*Db, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("id2node: opening %s: %w", dir, err)
	}
	return &Db{db: db}, nil
}

// OpenInMemory opens an in-memory store, useful for tests and
// single-session sub-segment spills.
func OpenInMemory() (*Db, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("id2node: opening in-memory store: %w", err)
	}
	return &Db{db: db}, nil
}

func idKey(id node.NodeID) []byte {
	key := make([]byte, 9)
	key[0] = prefixID2Node
	putUint64(key[1:], uint64(id))
	return key
}

func nodeKey(n node.Node) []byte {
	s := n.String()
	key := make([]byte, 0, 1+len(s))
	key = append(key, prefixNode2ID)
	key = append(key, s...)
	return key
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Put registers the mapping id -> n. Put is idempotent; all writers
// must produce the same node for a given id (the caller's
// responsibility, per the Node identity contract).
func (d *Db) Put(id node.NodeID, n node.Node) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return fmt.Errorf("id2node: store is closed")
	}
	d.mu.RUnlock()

	s := n.String()
	return d.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(idKey(id), []byte(s)); err != nil {
			return err
		}
		return txn.Set(nodeKey(n), putIDBytes(id))
	})
}

func putIDBytes(id node.NodeID) []byte {
	b := make([]byte, 8)
	putUint64(b, uint64(id))
	return b
}

// Get returns the node registered for id, or (zero, false) if unknown.
func (d *Db) Get(id node.NodeID) (node.Node, bool) {
	var n node.Node
	found := false

	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n = node.From(string(val))
			found = true
			return nil
		})
	})
	if err != nil {
		return node.Node{}, false
	}
	return n, found
}

// IDOf returns the NodeID registered for n, or (0, false) if unknown.
// Not part of spec.md's Id2NodeDb contract directly, but a useful
// companion lookup exposed for the ingestion and autosuggest
// collaborators that start from a raw URL string.
func (d *Db) IDOf(n node.Node) (node.NodeID, bool) {
	var id node.NodeID
	found := false

	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(n))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = node.NodeID(getUint64(val))
			found = true
			return nil
		})
	})
	if err != nil {
		return 0, false
	}
	return id, found
}

// Keys returns every NodeID currently registered. Unordered, finite,
// restartable: each call does a fresh scan.
func (d *Db) Keys() ([]node.NodeID, error) {
	var ids []node.NodeID
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixID2Node}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, node.NodeID(getUint64(key[1:])))
		}
		return nil
	})
	return ids, err
}

// Pair is a (NodeID, Node) entry returned by Iter.
type Pair struct {
	ID   node.NodeID
	Node node.Node
}

// Iter returns every (NodeID, Node) entry. Unordered, finite, restartable.
func (d *Db) Iter() ([]Pair, error) {
	var pairs []Pair
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixID2Node}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := node.NodeID(getUint64(item.Key()[1:]))
			err := item.Value(func(val []byte) error {
				pairs = append(pairs, Pair{ID: id, Node: node.From(string(val))})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return pairs, err
}

// EstimateNumKeys approximates the cardinality of the map. Precision is
// not required; it is used only for sizing.
func (d *Db) EstimateNumKeys() uint64 {
	lsm, vlog := d.db.Size()
	if lsm+vlog <= 0 {
		return 0
	}
	// Rough average-entry-size heuristic; good enough for sizing hints.
	const avgEntryBytes = 64
	return uint64(lsm+vlog) / avgEntryBytes
}

// Merge unions other into d. On overlap, either version is acceptable
// since the Node identity contract guarantees both writers agree on the
// canonical node for a given id.
func (d *Db) Merge(other *Db) error {
	pairs, err := other.Iter()
	if err != nil {
		return fmt.Errorf("id2node: merge: reading source: %w", err)
	}

	return d.db.Update(func(txn *badger.Txn) error {
		for _, p := range pairs {
			if err := txn.Set(idKey(p.ID), []byte(p.Node.String())); err != nil {
				return err
			}
			if err := txn.Set(nodeKey(p.Node), putIDBytes(p.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Flush makes preceding writes durable.
func (d *Db) Flush() error {
	return d.db.Sync()
}

// OptimizeRead coalesces the store for a read-heavy workload.
func (d *Db) OptimizeRead() error {
	return d.db.Flatten(1)
}

// Close releases the underlying BadgerDB handle.
func (d *Db) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}
