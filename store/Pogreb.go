/*
File Name:  Pogreb.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package store

import (
	"io"
	"log"

	"github.com/akrylysov/pogreb"
)

// Pogreb is a key/value store backed by an embedded on-disk database
// (akrylysov/pogreb). It lets cached records survive a node restart.
type Pogreb struct {
	db *pogreb.DB
}

// NewPogreb opens (or creates) a Pogreb-backed store at filename.
func NewPogreb(filename string) (s *Pogreb, err error) {
	pogreb.SetLogger(log.New(io.Discard, "", 0))

	db, err := pogreb.Open(filename, nil)
	if err != nil {
		return nil, err
	}

	return &Pogreb{db: db}, nil
}

// Set stores the key/value pair.
func (s *Pogreb) Set(key []byte, data []byte) error {
	return s.db.Put(key, data)
}

// Get returns the value for the key if present.
func (s *Pogreb) Get(key []byte) (data []byte, found bool) {
	value, err := s.db.Get(key)
	if err != nil || value == nil {
		return nil, false
	}
	return value, true
}

// Delete removes a key/value pair. A missing key is not an error.
func (s *Pogreb) Delete(key []byte) error {
	return s.db.Delete(key)
}

// Close flushes and closes the underlying database.
func (s *Pogreb) Close() error {
	return s.db.Close()
}

// Count returns the count of records stored.
func (s *Pogreb) Count() uint64 {
	return uint64(s.db.Count())
}
