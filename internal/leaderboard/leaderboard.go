// Package leaderboard tracks walnut-found scores per identity. It is a
// simple separable actor: the room reports finds, HTTP handlers read
// rankings.
package leaderboard

import (
	"sort"
	"sync"
	"time"

	"walnut-woods/server/internal/store"
)

// Score is one identity's persisted record.
type Score struct {
	Identity  string    `json:"identity"`
	Name      string    `json:"name"`
	Found     int       `json:"found"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Board struct {
	mu     sync.Mutex
	scores map[string]*Score
	st     *store.Store
	clock  func() time.Time
}

// New loads persisted scores, if any. A nil store keeps the board
// memory-only.
func New(st *store.Store) *Board {
	b := &Board{
		scores: make(map[string]*Score),
		st:     st,
		clock:  time.Now,
	}
	if st != nil {
		var persisted []Score
		if err := st.Get(store.LeaderboardKey(), &persisted); err == nil {
			for i := range persisted {
				s := persisted[i]
				b.scores[s.Identity] = &s
			}
		}
	}
	return b
}

// RecordFind increments an identity's score and returns the new total.
func (b *Board) RecordFind(identity, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	score, ok := b.scores[identity]
	if !ok {
		score = &Score{Identity: identity}
		b.scores[identity] = score
	}
	if name != "" {
		score.Name = name
	}
	score.Found++
	score.UpdatedAt = b.clock()
	b.persistLocked()
	return score.Found
}

// TopN returns the highest scores, best first. Ties order by identity so
// the ranking is stable.
func (b *Board) TopN(n int) []Score {
	b.mu.Lock()
	sorted := b.sortedLocked()
	b.mu.Unlock()

	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Rank returns the 1-based rank for an identity.
func (b *Board) Rank(identity string) (int, bool) {
	b.mu.Lock()
	sorted := b.sortedLocked()
	b.mu.Unlock()

	for i, s := range sorted {
		if s.Identity == identity {
			return i + 1, true
		}
	}
	return 0, false
}

// Reset clears all scores, persisting the empty board.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores = make(map[string]*Score)
	b.persistLocked()
}

func (b *Board) sortedLocked() []Score {
	sorted := make([]Score, 0, len(b.scores))
	for _, s := range b.scores {
		sorted = append(sorted, *s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Found != sorted[j].Found {
			return sorted[i].Found > sorted[j].Found
		}
		return sorted[i].Identity < sorted[j].Identity
	})
	return sorted
}

func (b *Board) persistLocked() {
	if b.st == nil {
		return
	}
	records := make([]Score, 0, len(b.scores))
	for _, s := range b.scores {
		records = append(records, *s)
	}
	// Score records tolerate batching; a crash loses at most one flush
	// interval of increments.
	_ = b.st.PutBatched(store.LeaderboardKey(), records)
}
