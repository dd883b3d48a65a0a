// Package evidence uploads files attached to tickets and hands back a link.
package evidence

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store persists evidence files and returns a URL to reach them.
type Store interface {
	Upload(ctx context.Context, ticketID int64, fileName, contentType string, body io.Reader, size int64) (string, error)
}

// ObjectKey builds a collision-free key under the ticket's prefix.
func ObjectKey(ticketID int64, fileName string) string {
	return fmt.Sprintf("tickets/%d/%s-%s", ticketID, uuid.NewString(), sanitizeName(fileName))
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// MemoryStore keeps uploads in memory. It backs development mode and tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	BaseURL string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), BaseURL: "memory://evidence/"}
}

func (m *MemoryStore) Upload(ctx context.Context, ticketID int64, fileName, _ string, body io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := ObjectKey(ticketID, fileName)
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return m.BaseURL + key, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
