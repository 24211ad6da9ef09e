package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// ErrIngestion marks failures while persisting a voucher batch.
var ErrIngestion = errors.New("voucher_ingestion_failed")

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

var Module = fx.Module("ingest",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ingest.service"),
	}
}

// flagOrNo defaults an absent Yes/No payload flag to "No". Every analytics
// query filters on iscancelled = 'No', so an empty flag would hide the
// voucher from all reads.
func flagOrNo(t domain.Text) string {
	if s := strings.TrimSpace(t.String()); s != "" {
		return s
	}
	return "No"
}

// Ingest persists a batch of raw vouchers for one tenant guid inside a single
// transaction. Each voucher row is upserted on (masterid, guid) and its child
// rows are deleted and re-inserted wholesale, so replaying a chunk is
// idempotent. Returns the number of vouchers written.
func (s *Service) Ingest(ctx context.Context, guid string, vouchers []domain.RawVoucher) (int, error) {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return 0, fmt.Errorf("%w: missing guid", ErrIngestion)
	}
	if len(vouchers) == 0 {
		return 0, nil
	}

	written := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, raw := range vouchers {
			masterID := strings.TrimSpace(raw.MasterID.String())
			if masterID == "" {
				s.log.Warn("skipping voucher without masterid",
					zap.String("guid", guid),
					zap.String("voucher_number", raw.VoucherNumber.String()),
				)
				continue
			}

			row := domain.Voucher{
				MasterID:                masterID,
				Guid:                    guid,
				AlterID:                 int64(raw.AlterID),
				VoucherTypeName:         raw.VoucherTypeName.String(),
				VoucherTypeReservedName: raw.VoucherTypeReservedName.String(),
				VoucherNumber:           raw.VoucherNumber.String(),
				Date:                    domain.NormalizeDate(raw.Date.String()),
				PartyLedgerName:         raw.PartyLedgerName.String(),
				PartyLedgerNameID:       raw.PartyLedgerNameID.String(),
				State:                   raw.State.String(),
				Country:                 raw.Country.String(),
				PartyGSTIN:              raw.PartyGSTIN.String(),
				Pincode:                 raw.Pincode.String(),
				Address:                 raw.Address.String(),
				Amount:                  raw.Amount.String(),
				IsCancelled:             flagOrNo(raw.IsCancelled),
				IsOptional:              flagOrNo(raw.IsOptional),
				Salesperson:             raw.DeriveSalesperson(),
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "masterid"}, {Name: "guid"}},
				UpdateAll: true,
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert voucher %s: %w", masterID, err)
			}

			if err := tx.Where("voucher_masterid = ? AND guid = ?", masterID, guid).
				Delete(&domain.LedgerEntry{}).Error; err != nil {
				return fmt.Errorf("delete ledger entries %s: %w", masterID, err)
			}
			if err := tx.Where("voucher_masterid = ? AND guid = ?", masterID, guid).
				Delete(&domain.InventoryEntry{}).Error; err != nil {
				return fmt.Errorf("delete inventory entries %s: %w", masterID, err)
			}

			for _, le := range raw.LedgerEntries {
				entry := domain.LedgerEntry{
					VoucherMasterID:  masterID,
					Guid:             guid,
					LedgerName:       le.LedgerName.String(),
					LedgerNameID:     le.LedgerNameID.String(),
					Amount:           le.Amount.String(),
					IsDeemedPositive: le.IsDeemedPositive.String(),
					IsPartyLedger:    le.IsPartyLedger.String(),
					GroupName:        le.GroupName.String(),
					GroupOfGroup:     le.GroupOfGroup.String(),
					GroupList:        le.GroupList.String(),
				}
				if err := tx.Create(&entry).Error; err != nil {
					return fmt.Errorf("insert ledger entry %s: %w", masterID, err)
				}
			}

			for _, ie := range raw.InventoryEntries {
				entry := domain.InventoryEntry{
					VoucherMasterID: masterID,
					Guid:            guid,
					StockItemName:   ie.StockItemName.String(),
					StockItemNameID: ie.StockItemNameID.String(),
					UOM:             ie.UOM.String(),
					ActualQty:       ie.ActualQty.String(),
					BilledQty:       ie.BilledQty.String(),
					Rate:            ie.Rate.String(),
					Discount:        ie.Discount.String(),
					Amount:          ie.Amount.String(),
					StockItemGroup:  ie.StockItemGroup.String(),
					GrossCost:       ie.GrossCost.String(),
					GrossExpense:    ie.GrossExpense.String(),
					Profit:          ie.Profit.String(),
				}
				if err := tx.Create(&entry).Error; err != nil {
					return fmt.Errorf("insert inventory entry %s: %w", masterID, err)
				}
			}

			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIngestion, err)
	}

	return written, nil
}
