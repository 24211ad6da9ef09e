package schema

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
)

// Module rebuilds missing rollups at startup. A store restored from a file
// copy or interrupted mid-rebuild may carry base rows without rollups; the
// dashboard self-heals lazily too, but doing it here keeps first reads fast.
var Module = fx.Module("schema",
	fx.Invoke(Bootstrap),
)

type BootstrapParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Aggregates *aggregate.Service
}

func Bootstrap(p BootstrapParams) error {
	log := p.Log.Named("schema.bootstrap")

	var guids []string
	err := p.DB.Raw(`
		SELECT DISTINCT guid FROM vouchers
		WHERE guid NOT IN (SELECT DISTINCT guid FROM daily_aggregates)`).
		Scan(&guids).Error
	if err != nil {
		return err
	}
	if len(guids) == 0 {
		return nil
	}

	log.Info("rebuilding rollups for tenants missing them", zap.Int("tenants", len(guids)))
	for _, guid := range guids {
		if err := p.Aggregates.Rebuild(context.Background(), guid); err != nil {
			// Leave the tenant to lazy self-heal rather than failing startup.
			log.Error("startup rebuild failed", zap.String("guid", guid), zap.Error(err))
		}
	}
	return nil
}
