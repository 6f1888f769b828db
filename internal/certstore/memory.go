package certstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
)

// Memory keeps artifacts in process and hands out self-contained data: URLs,
// so a certificate stays resolvable without any external storage.
type Memory struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

func NewMemory() *Memory {
	return &Memory{artifacts: make(map[string]Artifact)}
}

func (m *Memory) Put(ctx context.Context, id string, data []byte, mediaType string) (string, error) {
	locator := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))

	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.artifacts[id] = Artifact{ID: id, MediaType: mediaType, Locator: locator, Inline: buf}
	m.mu.Unlock()

	return locator, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Artifact, error) {
	m.mu.RLock()
	a, ok := m.artifacts[id]
	m.mu.RUnlock()
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return a, nil
}
