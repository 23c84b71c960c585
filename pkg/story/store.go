package story

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Hua914255/media/pkg/kv"
)

// ErrNotFound is returned for story ids that were never created.
var ErrNotFound = errors.New("story: not found")

// NewID returns a short story id: the first 8 hex digits of a random UUID.
func NewID() string {
	return uuid.NewString()[:8]
}

// Key layout:
//
//	story:{id}:meta                 → msgpack meta
//	story:{id}:turn:{%08d}          → msgpack Turn
//
// Zero-padded turn numbers keep lexicographic order equal to turn order.
func metaKey(id string) kv.Key {
	return kv.Key{"story", id, "meta"}
}

func turnPrefix(id string) kv.Key {
	return kv.Key{"story", id, "turn"}
}

func turnKey(id string, n int) kv.Key {
	return kv.Key{"story", id, "turn", fmt.Sprintf("%08d", n)}
}

type meta struct {
	ID        string    `msgpack:"id"`
	Turns     int       `msgpack:"turns"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// Store keeps stories in a kv.Store. Appends are serialized so that turn
// numbers are dense and 1-based per story.
type Store struct {
	kv kv.Store
	mu sync.Mutex
}

func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

func (s *Store) Create(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range 3 {
		id := NewID()
		if _, err := s.meta(ctx, id); !errors.Is(err, ErrNotFound) {
			if err != nil {
				return "", err
			}
			continue
		}
		b, err := msgpack.Marshal(&meta{ID: id, CreatedAt: time.Now().UTC()})
		if err != nil {
			return "", fmt.Errorf("story: encode meta: %w", err)
		}
		if err := s.kv.Set(ctx, metaKey(id), b); err != nil {
			return "", fmt.Errorf("story: create %s: %w", id, err)
		}
		return id, nil
	}
	return "", errors.New("story: could not allocate a unique id")
}

func (s *Store) meta(ctx context.Context, id string) (*meta, error) {
	b, err := s.kv.Get(ctx, metaKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("story: read %s: %w", id, err)
	}
	var m meta
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("story: decode meta %s: %w", id, err)
	}
	return &m, nil
}

// Turns returns all turns of a story in order.
func (s *Store) Turns(ctx context.Context, id string) ([]Turn, error) {
	if _, err := s.meta(ctx, id); err != nil {
		return nil, err
	}
	turns := []Turn{}
	for e, err := range s.kv.List(ctx, turnPrefix(id)) {
		if err != nil {
			return nil, fmt.Errorf("story: list %s: %w", id, err)
		}
		var t Turn
		if err := msgpack.Unmarshal(e.Value, &t); err != nil {
			return nil, fmt.Errorf("story: decode %s: %w", e.Key, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append numbers turns after the last stored one, stamps the story id and
// writes them together with the updated meta in one batch.
func (s *Store) Append(ctx context.Context, id string, turns ...Turn) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.meta(ctx, id)
	if err != nil {
		return nil, err
	}
	saved := make([]Turn, len(turns))
	entries := make([]kv.Entry, 0, len(turns)+1)
	for i, t := range turns {
		t.StoryID = id
		t.Turn = m.Turns + i + 1
		b, err := msgpack.Marshal(&t)
		if err != nil {
			return nil, fmt.Errorf("story: encode turn: %w", err)
		}
		saved[i] = t
		entries = append(entries, kv.Entry{Key: turnKey(id, t.Turn), Value: b})
	}
	m.Turns += len(turns)
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("story: encode meta: %w", err)
	}
	entries = append(entries, kv.Entry{Key: metaKey(id), Value: b})
	if err := s.kv.BatchSet(ctx, entries); err != nil {
		return nil, fmt.Errorf("story: append %s: %w", id, err)
	}
	return saved, nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}
