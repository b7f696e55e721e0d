package epoch

import "tranchepool/native/firstloss"

// MemoryState keeps the full pool state in process memory. It satisfies both
// the epoch manager's and the first-loss engines' state interfaces and is the
// default backend for tests and the simulator; the bbolt store provides the
// durable alternative.
type MemoryState struct {
	pool   *PoolState
	covers map[string]*firstloss.State
}

// NewMemoryState returns an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{covers: make(map[string]*firstloss.State)}
}

// GetPoolState implements the epoch manager state interface.
func (m *MemoryState) GetPoolState() (*PoolState, error) {
	return m.pool, nil
}

// PutPoolState implements the epoch manager state interface.
func (m *MemoryState) PutPoolState(state *PoolState) error {
	m.pool = state
	return nil
}

// GetCoverState implements the first-loss engine state interface.
func (m *MemoryState) GetCoverState(name string) (*firstloss.State, error) {
	return m.covers[name], nil
}

// PutCoverState implements the first-loss engine state interface.
func (m *MemoryState) PutCoverState(name string, state *firstloss.State) error {
	m.covers[name] = state
	return nil
}
