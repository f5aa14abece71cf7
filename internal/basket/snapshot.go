package basket

import "github.com/angelmondragon/tebex-storefront/pkg/tebex"

// Snapshot is the persistable part of the store: the basket document only.
type Snapshot struct {
	Basket *tebex.Basket `json:"basket"`
}

// Snapshot captures the committed basket.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Basket: s.currentBasket()}
}

// Restore replaces the basket from a snapshot and resets every flag to its default.
func (s *Store) Restore(snap Snapshot) {
	restored := snap.Basket.Clone()
	s.commit(func(st *State) {
		*st = State{Basket: restored}
	})
}

// SnapshotOf extracts the persistable part of a committed state.
func SnapshotOf(st State) Snapshot {
	return Snapshot{Basket: st.Basket.Clone()}
}
