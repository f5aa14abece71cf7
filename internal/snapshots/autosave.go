package snapshots

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

const writeTimeout = 5 * time.Second

// Source is the store surface autosave listens on.
type Source interface {
	Snapshot() basket.Snapshot
	Subscribe(fn func(basket.State)) func()
}

// Autosave writes the committed basket for key after every transition that changes it and
// deletes the record once the basket is discarded. Writes run inside the transition, so the
// persisted copy trails the store by at most one commit. The returned func stops saving.
func Autosave(store Source, persister Persister, key string, logg *logger.Logger) func() {
	if logg == nil {
		logg = logger.Nop()
	}
	last := fingerprint(store.Snapshot())
	return store.Subscribe(func(st basket.State) {
		snap := basket.SnapshotOf(st)
		current := fingerprint(snap)
		if current == last {
			return
		}

		ctx, cancel := context.WithTimeout(logg.WithSessionID(context.Background(), key), writeTimeout)
		defer cancel()

		var err error
		if snap.Basket == nil {
			err = persister.Delete(ctx, key)
		} else {
			err = persister.Save(ctx, key, snap)
		}
		if err != nil {
			logg.Error(ctx, "basket snapshot write failed", err)
			return
		}
		last = current
	})
}

func fingerprint(snap basket.Snapshot) string {
	raw, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	return string(raw)
}
