package snapshots

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPersister stores snapshots in the basket_snapshots table.
type GormPersister struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGormPersister binds the persister to db. A zero ttl leaves expires_at empty.
func NewGormPersister(db *gorm.DB, ttl time.Duration) *GormPersister {
	return &GormPersister{db: db, ttl: ttl, now: time.Now}
}

// Load returns false for missing or expired records. Expired rows are removed.
func (p *GormPersister) Load(ctx context.Context, key string) (basket.Snapshot, bool, error) {
	var row models.BasketSnapshot
	err := p.db.WithContext(ctx).Where("session_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return basket.Snapshot{}, false, nil
	}
	if err != nil {
		return basket.Snapshot{}, false, err
	}
	if row.ExpiresAt != nil && !row.ExpiresAt.After(p.now()) {
		return basket.Snapshot{}, false, p.Delete(ctx, key)
	}
	return decode(row.Payload)
}

// Save upserts the record for key.
func (p *GormPersister) Save(ctx context.Context, key string, snap basket.Snapshot) error {
	payload, err := encode(snap)
	if err != nil {
		return err
	}
	now := p.now().UTC()
	row := models.BasketSnapshot{
		SessionKey: key,
		Payload:    payload,
		UpdatedAt:  now,
	}
	if p.ttl > 0 {
		expires := now.Add(p.ttl)
		row.ExpiresAt = &expires
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

func (p *GormPersister) Delete(ctx context.Context, key string) error {
	return p.db.WithContext(ctx).Where("session_key = ?", key).Delete(&models.BasketSnapshot{}).Error
}
