package dialog

import (
	"sync"

	"github.com/Parth0603/CryptoPulse/internal/types"
)

// Step is the owner's position in the alert-creation flow.
type Step int

const (
	StepAwaitingCoin Step = iota
	StepAwaitingCondition
	StepAwaitingPrice
	StepAwaitingConfirm
)

// State is one owner's dialogue progress. It lives in memory only and is
// lost on restart.
type State struct {
	Step      Step
	Coin      string
	Condition types.Condition
}

// Store holds dialogue state keyed by owner. Injected into the machine so
// tests can seed and inspect it directly.
type Store struct {
	mu     sync.Mutex
	states map[string]State
}

func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Begin starts a fresh dialogue for the owner, silently discarding any
// in-progress one.
func (s *Store) Begin(owner string) {
	s.mu.Lock()
	s.states[owner] = State{Step: StepAwaitingCoin}
	s.mu.Unlock()
}

func (s *Store) Get(owner string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[owner]
	return st, ok
}

func (s *Store) Set(owner string, st State) {
	s.mu.Lock()
	s.states[owner] = st
	s.mu.Unlock()
}

func (s *Store) Clear(owner string) {
	s.mu.Lock()
	delete(s.states, owner)
	s.mu.Unlock()
}
