package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/observability/metrics"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// ErrRebuild marks failures while replacing the rollup tables.
var ErrRebuild = errors.New("aggregate_rebuild_failed")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Engine  *config.EngineConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	engine  *config.EngineConfigHolder
	metrics *metrics.Metrics
}

var Module = fx.Module("aggregate",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("aggregate.service"),
		engine:  p.Engine,
		metrics: p.Metrics,
	}
}

// Rebuild replaces both rollup tables for one tenant guid from the base
// tables inside a single transaction. Replace, never merge: a failed rebuild
// rolls back and leaves the previous rollups intact.
func (s *Service) Rebuild(ctx context.Context, guid string) error {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return fmt.Errorf("%w: missing guid", ErrRebuild)
	}

	markers := s.markers()
	started := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM daily_aggregates WHERE guid = ?`, guid).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM dimensional_aggregates WHERE guid = ?`, guid).Error; err != nil {
			return err
		}

		signedVoucher := domain.SignedExpr("amount", "vouchertypereservedname", markers)
		creditVoucher := domain.CreditNoteExpr("vouchertypereservedname", markers)
		if err := tx.Exec(fmt.Sprintf(`
			INSERT INTO daily_aggregates (guid, date, total_sales, total_txns, max_sale)
			SELECT guid, date,
			       SUM(%s),
			       COUNT(*),
			       COALESCE(MAX(CASE WHEN NOT %s THEN CAST(amount AS REAL) END), 0)
			FROM vouchers
			WHERE guid = ? AND iscancelled = 'No'
			GROUP BY date`, signedVoucher, creditVoucher), guid).Error; err != nil {
			return fmt.Errorf("daily rollup: %w", err)
		}

		signedInvAmount := domain.SignedExpr("i.amount", "v.vouchertypereservedname", markers)
		signedInvProfit := domain.SignedExpr("i.profit", "v.vouchertypereservedname", markers)
		for dim, nameCol := range map[string]string{
			domain.DimensionStockGroup: "i.stockitemgroup",
			domain.DimensionItem:       "i.stockitemname",
		} {
			if err := tx.Exec(fmt.Sprintf(`
				INSERT INTO dimensional_aggregates (guid, date, dimension_type, dimension_name, amount, profit, qty)
				SELECT v.guid, v.date, ?, %s,
				       SUM(%s),
				       SUM(%s),
				       SUM(CAST(i.billedqty AS REAL))
				FROM inventory_entries i
				JOIN vouchers v ON v.masterid = i.voucher_masterid AND v.guid = i.guid
				WHERE v.guid = ? AND v.iscancelled = 'No'
				GROUP BY v.date, %s`, nameCol, signedInvAmount, signedInvProfit, nameCol),
				dim, guid).Error; err != nil {
				return fmt.Errorf("%s rollup: %w", dim, err)
			}
		}

		signedLedger := domain.SignedExpr("l.amount", "v.vouchertypereservedname", markers)
		if err := tx.Exec(fmt.Sprintf(`
			INSERT INTO dimensional_aggregates (guid, date, dimension_type, dimension_name, amount, profit, qty)
			SELECT v.guid, v.date, ?, l.groupname,
			       SUM(%s), 0, 0
			FROM ledger_entries l
			JOIN vouchers v ON v.masterid = l.voucher_masterid AND v.guid = l.guid
			WHERE v.guid = ? AND v.iscancelled = 'No' AND l.ispartyledger = 'Yes'
			GROUP BY v.date, l.groupname`, signedLedger),
			domain.DimensionLedgerGroup, guid).Error; err != nil {
			return fmt.Errorf("ledgerGroup rollup: %w", err)
		}

		for dim, nameCol := range map[string]string{
			domain.DimensionCountry:     "country",
			domain.DimensionSalesperson: "salesperson",
		} {
			nameExpr := fmt.Sprintf("COALESCE(NULLIF(%s,''),'Unknown')", nameCol)
			if err := tx.Exec(fmt.Sprintf(`
				INSERT INTO dimensional_aggregates (guid, date, dimension_type, dimension_name, amount, profit, qty)
				SELECT guid, date, ?, %s,
				       SUM(%s), 0, 0
				FROM vouchers
				WHERE guid = ? AND iscancelled = 'No'
				GROUP BY date, %s`, nameExpr, signedVoucher, nameExpr),
				dim, guid).Error; err != nil {
				return fmt.Errorf("%s rollup: %w", dim, err)
			}
		}

		return nil
	})
	s.metrics.RecordRebuild(ctx, time.Since(started), err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRebuild, err)
	}

	s.log.Info("rollups rebuilt",
		zap.String("guid", guid),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// EnsureFresh self-heals missing rollups: base rows present but no rollup rows
// triggers a synchronous Rebuild. A tenant with no data at all is simply empty,
// not an error.
func (s *Service) EnsureFresh(ctx context.Context, guid string) error {
	var rollups int64
	if err := s.db.WithContext(ctx).Model(&domain.DailyAggregate{}).
		Where("guid = ?", guid).Count(&rollups).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrRebuild, err)
	}
	if rollups > 0 {
		return nil
	}

	var vouchers int64
	if err := s.db.WithContext(ctx).Model(&domain.Voucher{}).
		Where("guid = ?", guid).Count(&vouchers).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrRebuild, err)
	}
	if vouchers == 0 {
		return nil
	}

	s.log.Info("rollups missing for populated tenant, rebuilding", zap.String("guid", guid))
	return s.Rebuild(ctx, guid)
}

func (s *Service) markers() []string {
	if s.engine == nil {
		return nil
	}
	return s.engine.Get().CreditNoteMarkers
}
