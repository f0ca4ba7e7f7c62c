/*
File Name:  Memory.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package store

import (
	"sync"
)

// Memory is a process-lifetime in-memory key/value store. It is the default
// backend of the node's Blacklist and can also be attached to the value
// cache via WithBackend.
type Memory struct {
	mutex *sync.Mutex
	data  map[string][]byte
}

// NewMemory creates a properly initialized in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:  make(map[string][]byte),
		mutex: &sync.Mutex{},
	}
}

// Set stores the key/value pair.
func (m *Memory) Set(key []byte, data []byte) error {
	m.mutex.Lock()
	m.data[string(key)] = data
	m.mutex.Unlock()
	return nil
}

// Get returns the value for the key if present.
func (m *Memory) Get(key []byte) (data []byte, found bool) {
	m.mutex.Lock()
	data, found = m.data[string(key)]
	m.mutex.Unlock()
	return data, found
}

// Delete removes a key/value pair. A missing key is not an error.
func (m *Memory) Delete(key []byte) error {
	m.mutex.Lock()
	delete(m.data, string(key))
	m.mutex.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

// Count returns the count of records stored.
func (m *Memory) Count() uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return uint64(len(m.data))
}
