package snapshots

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
)

// RecordName labels persisted basket records.
const RecordName = "basket-storage"

// Persister stores basket snapshots outside the store.
type Persister interface {
	Load(ctx context.Context, key string) (basket.Snapshot, bool, error)
	Save(ctx context.Context, key string, snap basket.Snapshot) error
	Delete(ctx context.Context, key string) error
}

type record struct {
	Name string `json:"name"`
	basket.Snapshot
}

func encode(snap basket.Snapshot) (string, error) {
	payload, err := json.Marshal(record{Name: RecordName, Snapshot: snap})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(payload), nil
}

// decode returns false for records written under another name.
func decode(payload string) (basket.Snapshot, bool, error) {
	var rec record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return basket.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if rec.Name != RecordName {
		return basket.Snapshot{}, false, nil
	}
	return rec.Snapshot, true, nil
}
