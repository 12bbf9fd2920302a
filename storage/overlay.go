package storage

import "sync"

// Overlay buffers writes on top of a base database until Commit flushes them.
// Engine operations run against an overlay so a failing precondition midway
// through a multi-write transition (or a batch variant) leaves the base
// untouched.
type Overlay struct {
	mu      sync.Mutex
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[string(key)] = buf
	delete(o.deletes, string(key))
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	if _, gone := o.deletes[string(key)]; gone {
		o.mu.Unlock()
		return nil, ErrKeyNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		buf := make([]byte, len(value))
		copy(buf, value)
		o.mu.Unlock()
		return buf, nil
	}
	o.mu.Unlock()
	return o.base.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

// Close discards buffered writes without committing them.
func (o *Overlay) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

// Commit flushes buffered writes to the base database in one pass.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key := range o.deletes {
		if err := o.base.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}
