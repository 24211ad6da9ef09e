package dashboard

import (
	"context"
	"fmt"

	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// ProfitAnalysis is revenue versus profit over the selected range, taken from
// the item rollup so both figures share the inventory-line basis.
type ProfitAnalysis struct {
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

type PeriodValue struct {
	Period string  `json:"period" gorm:"column:period"`
	Value  float64 `json:"value" gorm:"column:value"`
}

type ExtendedData struct {
	SalesByStockGroup  []NameValue    `json:"salesByStockGroup"`
	SalesByLedgerGroup []NameValue    `json:"salesByLedgerGroup"`
	SalesByCountry     []NameValue    `json:"salesByCountry"`
	SalesBySalesperson []NameValue    `json:"salesBySalesperson"`
	SalesByPeriod      []PeriodValue  `json:"salesByPeriod"`
	TopItemsByQty      []NameValue    `json:"topItemsByQty"`
	ProfitAnalysis     ProfitAnalysis `json:"profitAnalysis"`
	MonthWiseProfit    []PeriodValue  `json:"monthWiseProfit"`
	TopProfitableItems []NameValue    `json:"topProfitableItems"`
	TopLossItems       []NameValue    `json:"topLossItems"`
}

// GetExtendedDashboardData serves the per-dimension breakdowns from the
// dimensional rollups, self-healing them first if absent.
func (s *Service) GetExtendedDashboardData(ctx context.Context, guid, from, to string) (ExtendedData, error) {
	from, to = normalizeRange(from, to)

	if err := s.aggregates.EnsureFresh(ctx, guid); err != nil {
		return ExtendedData{}, err
	}

	var out ExtendedData
	var err error

	if out.SalesByStockGroup, err = s.dimensionBreakdown(ctx, guid, from, to, domain.DimensionStockGroup, "amount", "", 0); err != nil {
		return ExtendedData{}, err
	}
	if out.SalesByLedgerGroup, err = s.dimensionBreakdown(ctx, guid, from, to, domain.DimensionLedgerGroup, "amount", "", 0); err != nil {
		return ExtendedData{}, err
	}
	if out.SalesByCountry, err = s.dimensionBreakdown(ctx, guid, from, to, domain.DimensionCountry, "amount", "", 0); err != nil {
		return ExtendedData{}, err
	}
	if out.SalesBySalesperson, err = s.dimensionBreakdown(ctx, guid, from, to, domain.DimensionSalesperson, "amount", "", 0); err != nil {
		return ExtendedData{}, err
	}
	if out.TopItemsByQty, err = s.dimensionBreakdown(ctx, guid, from, to, domain.DimensionItem, "qty", "", topListLimit); err != nil {
		return ExtendedData{}, err
	}
	if out.TopProfitableItems, err = s.dimensionBreakdown(ctx, guid, from, to, domain.DimensionItem, "profit", "HAVING value > 0", topListLimit); err != nil {
		return ExtendedData{}, err
	}

	out.TopLossItems = []NameValue{}
	if err = s.db.WithContext(ctx).Raw(`
		SELECT dimension_name AS name, SUM(profit) AS value
		FROM dimensional_aggregates
		WHERE guid = ? AND dimension_type = ? AND date >= ? AND date <= ?
		GROUP BY dimension_name HAVING value < 0
		ORDER BY value ASC LIMIT ?`,
		guid, domain.DimensionItem, from, to, topListLimit).
		Scan(&out.TopLossItems).Error; err != nil {
		return ExtendedData{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	out.SalesByPeriod = []PeriodValue{}
	if err = s.db.WithContext(ctx).Raw(`
		SELECT SUBSTR(date,1,6) AS period, SUM(total_sales) AS value
		FROM daily_aggregates
		WHERE guid = ? AND date >= ? AND date <= ?
		GROUP BY period ORDER BY period ASC`, guid, from, to).
		Scan(&out.SalesByPeriod).Error; err != nil {
		return ExtendedData{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	out.MonthWiseProfit = []PeriodValue{}
	if err = s.db.WithContext(ctx).Raw(`
		SELECT SUBSTR(date,1,6) AS period, SUM(profit) AS value
		FROM dimensional_aggregates
		WHERE guid = ? AND dimension_type = ? AND date >= ? AND date <= ?
		GROUP BY period ORDER BY period ASC`,
		guid, domain.DimensionItem, from, to).
		Scan(&out.MonthWiseProfit).Error; err != nil {
		return ExtendedData{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	var profitRow struct {
		Revenue float64 `gorm:"column:revenue"`
		Profit  float64 `gorm:"column:profit"`
	}
	if err = s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(amount),0) AS revenue, COALESCE(SUM(profit),0) AS profit
		FROM dimensional_aggregates
		WHERE guid = ? AND dimension_type = ? AND date >= ? AND date <= ?`,
		guid, domain.DimensionItem, from, to).
		Scan(&profitRow).Error; err != nil {
		return ExtendedData{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	out.ProfitAnalysis = ProfitAnalysis{Revenue: profitRow.Revenue, Profit: profitRow.Profit}

	return out, nil
}

func (s *Service) dimensionBreakdown(ctx context.Context, guid, from, to, dimension, measure, having string, limit int) ([]NameValue, error) {
	limitClause := ""
	if limit > 0 {
		limitClause = fmt.Sprintf("LIMIT %d", limit)
	}
	rows := []NameValue{}
	if err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT dimension_name AS name, SUM(%s) AS value
		FROM dimensional_aggregates
		WHERE guid = ? AND dimension_type = ? AND date >= ? AND date <= ?
		GROUP BY dimension_name %s
		ORDER BY value DESC %s`, measure, having, limitClause),
		guid, dimension, from, to).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return rows, nil
}
