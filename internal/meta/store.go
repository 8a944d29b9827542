// Package meta holds per-entry attributes keyed by node ID.
package meta

import (
	"io/fs"
	"sync"
	"time"

	"github.com/entro314-labs/spacemap/internal/core"
)

const shardCount = 64

// Entry is what the crawler learned about one filesystem entry.
type Entry struct {
	Name    string
	Kind    core.Kind
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	Symlink bool
	Err     string
}

type shard struct {
	mu      sync.RWMutex
	entries map[core.ID]Entry
}

// Store is a sharded map safe for concurrent writers. Writers touching
// different IDs mostly land on different shards.
type Store struct {
	shards [shardCount]shard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].entries = make(map[core.ID]Entry)
	}
	return s
}

func (s *Store) shard(id core.ID) *shard {
	return &s.shards[uint32(id)%shardCount]
}

// Put records or replaces the entry for id.
func (s *Store) Put(id core.ID, e Entry) {
	sh := s.shard(id)
	sh.mu.Lock()
	sh.entries[id] = e
	sh.mu.Unlock()
}

// SetError attaches an error message to id, creating the entry if needed.
func (s *Store) SetError(id core.ID, err error) {
	if err == nil {
		return
	}
	sh := s.shard(id)
	sh.mu.Lock()
	e := sh.entries[id]
	e.Err = err.Error()
	sh.entries[id] = e
	sh.mu.Unlock()
}

func (s *Store) Get(id core.ID) (Entry, bool) {
	sh := s.shard(id)
	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	return e, ok
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Errors returns the IDs that carry an error message.
func (s *Store) Errors() []core.ID {
	var ids []core.ID
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for id, e := range sh.entries {
			if e.Err != "" {
				ids = append(ids, id)
			}
		}
		sh.mu.RUnlock()
	}
	return ids
}
