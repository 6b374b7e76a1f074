// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"slices"
	"sync"

	"github.com/cmdtree/cmdtree/pkg/cmddoc"
)

// Memory is a mutable in-memory document set. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]cmddoc.Input
}

// NewMemory creates a Memory holding docs, keyed by document id. Formats are
// derived from the ids.
func NewMemory(docs map[string]string) *Memory {
	m := &Memory{docs: make(map[string]cmddoc.Input, len(docs))}
	for id, data := range docs {
		m.docs[id] = cmddoc.Input{ID: id, Data: []byte(data)}
	}
	return m
}

// Name implements live.Source.
func (m *Memory) Name() string { return "memory" }

// Put adds or replaces a document.
func (m *Memory) Put(id string, data []byte) {
	m.PutInput(cmddoc.Input{ID: id, Data: slices.Clone(data)})
}

// PutInput adds or replaces a document with an explicit format.
func (m *Memory) PutInput(in cmddoc.Input) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[in.ID] = in
}

// Delete removes a document and reports whether it existed.
func (m *Memory) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	delete(m.docs, id)
	return ok
}

// Load implements live.Source.
func (m *Memory) Load(ctx context.Context) ([]cmddoc.Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	inputs := make([]cmddoc.Input, 0, len(m.docs))
	for _, in := range m.docs {
		inputs = append(inputs, in)
	}
	sortInputs(inputs)
	return inputs, nil
}
