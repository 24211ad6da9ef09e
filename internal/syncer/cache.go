package syncer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/syncer/events"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// Stats summarizes one tenant's cache contents.
type Stats struct {
	TotalVouchers         int64     `json:"totalVouchers"`
	TotalLedgerEntries    int64     `json:"totalLedgerEntries"`
	TotalInventoryEntries int64     `json:"totalInventoryEntries"`
	DateRange             DateRange `json:"dateRange"`
	LastSync              string    `json:"lastSync"`
	MaxAlterID            int64     `json:"maxAlterId"`
}

type DateRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

func (s *Service) Stats(ctx context.Context, guid string) (Stats, error) {
	stats := Stats{
		DateRange: DateRange{Min: "N/A", Max: "N/A"},
		LastSync:  "Never",
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.Voucher{}).Where("guid = ?", guid).
		Count(&stats.TotalVouchers).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&domain.LedgerEntry{}).Where("guid = ?", guid).
		Count(&stats.TotalLedgerEntries).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&domain.InventoryEntry{}).Where("guid = ?", guid).
		Count(&stats.TotalInventoryEntries).Error; err != nil {
		return Stats{}, err
	}

	var bounds struct {
		Min string `gorm:"column:min_date"`
		Max string `gorm:"column:max_date"`
	}
	if err := db.Raw(`
		SELECT COALESCE(MIN(date),'') AS min_date, COALESCE(MAX(date),'') AS max_date
		FROM vouchers WHERE guid = ?`, guid).Scan(&bounds).Error; err != nil {
		return Stats{}, err
	}
	if bounds.Min != "" {
		stats.DateRange = DateRange{Min: bounds.Min, Max: bounds.Max}
	}

	if last := s.syncMetaValue(ctx, domain.SyncMetaLastSyncTime); last != "" {
		stats.LastSync = last
	}

	if err := db.Raw(`SELECT COALESCE(MAX(alterid),0) FROM vouchers WHERE guid = ?`, guid).
		Scan(&stats.MaxAlterID).Error; err != nil {
		return Stats{}, err
	}

	return stats, nil
}

// Clear wipes one tenant's cached rows and rollups. sync_meta is global and is
// wiped entirely, a deliberate carry-over of the single-tenant watermark
// limitation.
func (s *Service) Clear(ctx context.Context, guid string) error {
	if strings.TrimSpace(guid) == "" {
		return fmt.Errorf("%w: guid required", ErrInvalidRequest)
	}
	if err := s.begin(StatusIdle); err != nil {
		return err
	}
	defer s.finish(StatusIdle)

	statements := []string{
		`DELETE FROM ledger_entries WHERE guid = ?`,
		`DELETE FROM inventory_entries WHERE guid = ?`,
		`DELETE FROM vouchers WHERE guid = ?`,
		`DELETE FROM daily_aggregates WHERE guid = ?`,
		`DELETE FROM dimensional_aggregates WHERE guid = ?`,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range statements {
			if err := tx.Exec(stmt, guid).Error; err != nil {
				return err
			}
		}
		return tx.Exec(`DELETE FROM sync_meta`).Error
	})
	if err != nil {
		return err
	}

	s.hub.Publish(guid, events.Event{Type: events.TypeClearComplete, Message: "Cache cleared"})
	s.log.Info("cache cleared", zap.String("guid", guid))
	return nil
}

// RawPage is one page of cached vouchers with their child rows attached.
type RawPage struct {
	TotalVouchers int64        `json:"totalVouchers"`
	Showing       PageInfo     `json:"showing"`
	Vouchers      []RawVoucher `json:"vouchers"`
}

type PageInfo struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Count  int `json:"count"`
}

type RawVoucher struct {
	domain.Voucher
	LedgerEntries    []domain.LedgerEntry    `json:"ledgerEntries" gorm:"-"`
	InventoryEntries []domain.InventoryEntry `json:"inventoryEntries" gorm:"-"`
}

// RawData pages through a tenant's vouchers newest-first for cache inspection.
func (s *Service) RawData(ctx context.Context, guid string, limit, offset int) (RawPage, error) {
	maxLimit := s.engine.Get().RawPageLimit
	if limit <= 0 {
		limit = 100
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	db := s.db.WithContext(ctx)
	page := RawPage{Vouchers: []RawVoucher{}}
	if err := db.Model(&domain.Voucher{}).Where("guid = ?", guid).
		Count(&page.TotalVouchers).Error; err != nil {
		return RawPage{}, err
	}

	var vouchers []domain.Voucher
	if err := db.Where("guid = ?", guid).
		Order("date DESC, masterid DESC").
		Limit(limit).Offset(offset).
		Find(&vouchers).Error; err != nil {
		return RawPage{}, err
	}

	for _, v := range vouchers {
		raw := RawVoucher{Voucher: v, LedgerEntries: []domain.LedgerEntry{}, InventoryEntries: []domain.InventoryEntry{}}
		if err := db.Where("voucher_masterid = ? AND guid = ?", v.MasterID, guid).
			Find(&raw.LedgerEntries).Error; err != nil {
			return RawPage{}, err
		}
		if err := db.Where("voucher_masterid = ? AND guid = ?", v.MasterID, guid).
			Find(&raw.InventoryEntries).Error; err != nil {
			return RawPage{}, err
		}
		page.Vouchers = append(page.Vouchers, raw)
	}

	page.Showing = PageInfo{Offset: offset, Limit: limit, Count: len(page.Vouchers)}
	return page, nil
}
