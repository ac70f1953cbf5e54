package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"uiagent/internal/types"
	"uiagent/internal/util/jsonutil"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists generated files per session.
type Store interface {
	Put(ctx context.Context, sessionID, path string, content []byte) error
	Get(ctx context.Context, sessionID, path string) ([]byte, error)
	// URL returns a shareable link, or "" when the backend has none.
	URL(ctx context.Context, sessionID, path string) (string, error)
	List(ctx context.Context, sessionID string) ([]string, error)
}

// TurnPaths returns the code and plan paths for a turn version.
func TurnPaths(version int64) (code, plan string) {
	v := strconv.FormatInt(version, 10)
	return v + "/code.jsx", v + "/plan.json"
}

// SaveTurn writes the turn's generated code and plan.
func SaveTurn(ctx context.Context, s Store, sessionID string, t types.Turn) error {
	codePath, planPath := TurnPaths(t.Version)
	if err := s.Put(ctx, sessionID, codePath, []byte(t.Code)); err != nil {
		return fmt.Errorf("put %s: %w", codePath, err)
	}
	plan, err := jsonutil.MarshalNoEscapeIndent(t.Plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := s.Put(ctx, sessionID, planPath, plan); err != nil {
		return fmt.Errorf("put %s: %w", planPath, err)
	}
	return nil
}

func validate(sessionID, path string) (string, string, error) {
	sessionID = strings.TrimSpace(sessionID)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if sessionID == "" {
		return "", "", fmt.Errorf("session_id is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	return sessionID, path, nil
}

// MemoryStore keeps artifacts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: map[string]map[string][]byte{}}
}

func (m *MemoryStore) Put(_ context.Context, sessionID, path string, content []byte) error {
	sessionID, path, err := validate(sessionID, path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[sessionID] == nil {
		m.files[sessionID] = map[string][]byte{}
	}
	m.files[sessionID][path] = append([]byte(nil), content...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID, path string) ([]byte, error) {
	sessionID, path, err := validate(sessionID, path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.files[sessionID][path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStore) URL(context.Context, string, string) (string, error) { return "", nil }

func (m *MemoryStore) List(_ context.Context, sessionID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files[sessionID]))
	for p := range m.files[sessionID] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
