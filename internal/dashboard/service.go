package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// ErrQuery marks dashboard read failures.
var ErrQuery = errors.New("dashboard_query_failed")

const topListLimit = 10

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Engine     *config.EngineConfigHolder
	Aggregates *aggregate.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	engine     *config.EngineConfigHolder
	aggregates *aggregate.Service
}

var Module = fx.Module("dashboard",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dashboard.service"),
		engine:     p.Engine,
		aggregates: p.Aggregates,
	}
}

// KPI is the headline block of the dashboard.
type KPI struct {
	TotalSales    float64 `json:"totalSales"`
	TotalTxns     int64   `json:"totalTxns"`
	AvgOrderValue float64 `json:"avgOrderValue"`
	MaxSale       float64 `json:"maxSale"`
}

type NameValue struct {
	Name  string  `json:"name" gorm:"column:name"`
	Value float64 `json:"value" gorm:"column:value"`
}

type TrendPoint struct {
	Date  string  `json:"date" gorm:"column:date"`
	Total float64 `json:"total" gorm:"column:total"`
}

type Charts struct {
	SalesTrend   []TrendPoint `json:"salesTrend"`
	SalesByState []NameValue  `json:"salesByState"`
	TopCustomers []NameValue  `json:"topCustomers"`
	TopItems     []NameValue  `json:"topItems"`
}

type Data struct {
	KPI    KPI    `json:"kpi"`
	Charts Charts `json:"charts"`
}

// Filters narrows the dashboard to one dimension value each. Any active
// filter forces the slow path.
type Filters struct {
	StockGroup  string `json:"stockGroup" form:"stockGroup"`
	StockItem   string `json:"stockItem" form:"stockItem"`
	LedgerGroup string `json:"ledgerGroup" form:"ledgerGroup"`
	State       string `json:"state" form:"state"`
	Country     string `json:"country" form:"country"`
	Customer    string `json:"customer" form:"customer"`
	Salesperson string `json:"salesperson" form:"salesperson"`
	Period      string `json:"period" form:"period"` // YYYYMM
}

func (f Filters) Active() bool {
	return f != (Filters{})
}

func (f Filters) itemScoped() bool {
	return f.StockGroup != "" || f.StockItem != ""
}

// GetDashboardData serves the KPI block and core charts for a date range.
// Pure date-range queries read the rollups; any dimensional filter falls back
// to a scratch fact set over the base tables. Both paths agree on KPI values
// for the same effective voucher set.
func (s *Service) GetDashboardData(ctx context.Context, guid, from, to string, filters Filters) (Data, error) {
	from, to = normalizeRange(from, to)

	if err := s.aggregates.EnsureFresh(ctx, guid); err != nil {
		return Data{}, err
	}

	if !filters.Active() {
		return s.fastPath(ctx, guid, from, to)
	}
	return s.slowPath(ctx, guid, from, to, filters)
}

func normalizeRange(from, to string) (string, string) {
	if from == "" {
		from = "00000000"
	}
	if to == "" {
		to = "99999999"
	}
	return from, to
}

func (s *Service) fastPath(ctx context.Context, guid, from, to string) (Data, error) {
	var kpiRow struct {
		TotalSales float64 `gorm:"column:total_sales"`
		TotalTxns  int64   `gorm:"column:total_txns"`
		MaxSale    float64 `gorm:"column:max_sale"`
	}
	if err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(total_sales),0) AS total_sales,
		       COALESCE(SUM(total_txns),0)  AS total_txns,
		       COALESCE(MAX(max_sale),0)    AS max_sale
		FROM daily_aggregates
		WHERE guid = ? AND date >= ? AND date <= ?`, guid, from, to).
		Scan(&kpiRow).Error; err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	kpi := KPI{
		TotalSales: kpiRow.TotalSales,
		TotalTxns:  kpiRow.TotalTxns,
		MaxSale:    kpiRow.MaxSale,
	}
	if kpi.TotalTxns > 0 {
		kpi.AvgOrderValue = kpi.TotalSales / float64(kpi.TotalTxns)
	}

	trend := []TrendPoint{}
	if err := s.db.WithContext(ctx).Raw(`
		SELECT date, total_sales AS total
		FROM daily_aggregates
		WHERE guid = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, guid, from, to).
		Scan(&trend).Error; err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	markers := s.markers()
	signed := domain.SignedExpr("amount", "vouchertypereservedname", markers)

	byState := []NameValue{}
	if err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT COALESCE(NULLIF(state,''),'Unknown') AS name, SUM(%s) AS value
		FROM vouchers
		WHERE guid = ? AND iscancelled = 'No' AND date >= ? AND date <= ?
		GROUP BY name ORDER BY value DESC`, signed), guid, from, to).
		Scan(&byState).Error; err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	topCustomers := []NameValue{}
	if err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT partyledgername AS name, SUM(%s) AS value
		FROM vouchers
		WHERE guid = ? AND iscancelled = 'No' AND date >= ? AND date <= ?
		GROUP BY partyledgername ORDER BY value DESC LIMIT %d`, signed, topListLimit),
		guid, from, to).
		Scan(&topCustomers).Error; err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	signedInv := domain.SignedExpr("i.amount", "v.vouchertypereservedname", markers)
	topItems := []NameValue{}
	if err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT i.stockitemname AS name, SUM(%s) AS value
		FROM inventory_entries i
		JOIN vouchers v ON v.masterid = i.voucher_masterid AND v.guid = i.guid
		WHERE v.guid = ? AND v.iscancelled = 'No' AND v.date >= ? AND v.date <= ?
		GROUP BY i.stockitemname ORDER BY value DESC LIMIT %d`, signedInv, topListLimit),
		guid, from, to).
		Scan(&topItems).Error; err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return Data{
		KPI: kpi,
		Charts: Charts{
			SalesTrend:   trend,
			SalesByState: byState,
			TopCustomers: topCustomers,
			TopItems:     topItems,
		},
	}, nil
}

// fact is one voucher of the scratch fact set: an ephemeral, filter-reduced
// relation held in memory for the duration of a single slow-path read. When an
// item or group filter is active, Amount carries only the matching inventory
// lines of the voucher, not its full value.
type fact struct {
	MasterID    string  `gorm:"column:masterid"`
	Date        string  `gorm:"column:date"`
	State       string  `gorm:"column:state"`
	Country     string  `gorm:"column:country"`
	Customer    string  `gorm:"column:partyledgername"`
	Salesperson string  `gorm:"column:salesperson"`
	Amount      float64 `gorm:"column:amt"`
	IsCreditN   bool    `gorm:"column:is_cn"`
}

func (f fact) signed() float64 {
	if f.IsCreditN {
		return -f.Amount
	}
	return f.Amount
}

func (s *Service) slowPath(ctx context.Context, guid, from, to string, filters Filters) (Data, error) {
	facts, err := s.buildFactSet(ctx, guid, from, to, filters)
	if err != nil {
		return Data{}, err
	}

	var kpi KPI
	trendByDate := map[string]float64{}
	byState := map[string]float64{}
	byCustomer := map[string]float64{}
	for _, f := range facts {
		v := f.signed()
		kpi.TotalSales += v
		kpi.TotalTxns++
		if !f.IsCreditN && f.Amount > kpi.MaxSale {
			kpi.MaxSale = f.Amount
		}
		trendByDate[f.Date] += v
		state := f.State
		if state == "" {
			state = "Unknown"
		}
		byState[state] += v
		byCustomer[f.Customer] += v
	}
	if kpi.TotalTxns > 0 {
		kpi.AvgOrderValue = kpi.TotalSales / float64(kpi.TotalTxns)
	}

	topItems, err := s.slowPathTopItems(ctx, guid, from, to, filters)
	if err != nil {
		return Data{}, err
	}

	return Data{
		KPI: kpi,
		Charts: Charts{
			SalesTrend:   sortedTrend(trendByDate),
			SalesByState: sortedByValue(byState, 0),
			TopCustomers: sortedByValue(byCustomer, topListLimit),
			TopItems:     topItems,
		},
	}, nil
}

// buildFactSet materializes the filtered voucher set in one query. Voucher
// dimensions filter directly; child dimensions filter through the join, and an
// item/group filter additionally narrows revenue to the matching lines.
func (s *Service) buildFactSet(ctx context.Context, guid, from, to string, filters Filters) ([]fact, error) {
	markers := s.markers()
	creditFlag := fmt.Sprintf("CASE WHEN %s THEN 1 ELSE 0 END",
		domain.CreditNoteExpr("v.vouchertypereservedname", markers))

	where := []string{"v.guid = ?", "v.iscancelled = 'No'", "v.date >= ?", "v.date <= ?"}
	args := []any{guid, from, to}

	if filters.State != "" {
		where = append(where, "COALESCE(NULLIF(v.state,''),'Unknown') = ?")
		args = append(args, filters.State)
	}
	if filters.Country != "" {
		where = append(where, "COALESCE(NULLIF(v.country,''),'Unknown') = ?")
		args = append(args, filters.Country)
	}
	if filters.Customer != "" {
		where = append(where, "v.partyledgername = ?")
		args = append(args, filters.Customer)
	}
	if filters.Salesperson != "" {
		where = append(where, "COALESCE(NULLIF(v.salesperson,''),'Unknown') = ?")
		args = append(args, filters.Salesperson)
	}
	if filters.Period != "" {
		where = append(where, "SUBSTR(v.date,1,6) = ?")
		args = append(args, filters.Period)
	}
	if filters.LedgerGroup != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM ledger_entries l
			WHERE l.voucher_masterid = v.masterid AND l.guid = v.guid
			  AND l.ispartyledger = 'Yes' AND l.groupname = ?)`)
		args = append(args, filters.LedgerGroup)
	}

	var sql string
	if filters.itemScoped() {
		itemWhere := []string{"i.voucher_masterid = v.masterid", "i.guid = v.guid"}
		if filters.StockGroup != "" {
			itemWhere = append(itemWhere, "i.stockitemgroup = ?")
		}
		if filters.StockItem != "" {
			itemWhere = append(itemWhere, "i.stockitemname = ?")
		}
		sql = fmt.Sprintf(`
			SELECT v.masterid, v.date, v.state, v.country, v.partyledgername, v.salesperson,
			       SUM(CAST(i.amount AS REAL)) AS amt,
			       %s AS is_cn
			FROM vouchers v
			JOIN inventory_entries i ON %s
			WHERE %s
			GROUP BY v.masterid`, creditFlag, strings.Join(itemWhere, " AND "), strings.Join(where, " AND "))
		itemArgs := []any{}
		if filters.StockGroup != "" {
			itemArgs = append(itemArgs, filters.StockGroup)
		}
		if filters.StockItem != "" {
			itemArgs = append(itemArgs, filters.StockItem)
		}
		args = append(itemArgs, args...)
	} else {
		sql = fmt.Sprintf(`
			SELECT v.masterid, v.date, v.state, v.country, v.partyledgername, v.salesperson,
			       CAST(v.amount AS REAL) AS amt,
			       %s AS is_cn
			FROM vouchers v
			WHERE %s`, creditFlag, strings.Join(where, " AND "))
	}

	var facts []fact
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&facts).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return facts, nil
}

func (s *Service) slowPathTopItems(ctx context.Context, guid, from, to string, filters Filters) ([]NameValue, error) {
	markers := s.markers()
	signedInv := domain.SignedExpr("i.amount", "v.vouchertypereservedname", markers)

	where := []string{"v.guid = ?", "v.iscancelled = 'No'", "v.date >= ?", "v.date <= ?"}
	args := []any{guid, from, to}
	if filters.State != "" {
		where = append(where, "COALESCE(NULLIF(v.state,''),'Unknown') = ?")
		args = append(args, filters.State)
	}
	if filters.Country != "" {
		where = append(where, "COALESCE(NULLIF(v.country,''),'Unknown') = ?")
		args = append(args, filters.Country)
	}
	if filters.Customer != "" {
		where = append(where, "v.partyledgername = ?")
		args = append(args, filters.Customer)
	}
	if filters.Salesperson != "" {
		where = append(where, "COALESCE(NULLIF(v.salesperson,''),'Unknown') = ?")
		args = append(args, filters.Salesperson)
	}
	if filters.Period != "" {
		where = append(where, "SUBSTR(v.date,1,6) = ?")
		args = append(args, filters.Period)
	}
	if filters.LedgerGroup != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM ledger_entries l
			WHERE l.voucher_masterid = v.masterid AND l.guid = v.guid
			  AND l.ispartyledger = 'Yes' AND l.groupname = ?)`)
		args = append(args, filters.LedgerGroup)
	}
	if filters.StockGroup != "" {
		where = append(where, "i.stockitemgroup = ?")
		args = append(args, filters.StockGroup)
	}
	if filters.StockItem != "" {
		where = append(where, "i.stockitemname = ?")
		args = append(args, filters.StockItem)
	}

	items := []NameValue{}
	if err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT i.stockitemname AS name, SUM(%s) AS value
		FROM inventory_entries i
		JOIN vouchers v ON v.masterid = i.voucher_masterid AND v.guid = i.guid
		WHERE %s
		GROUP BY i.stockitemname ORDER BY value DESC LIMIT %d`,
		signedInv, strings.Join(where, " AND "), topListLimit), args...).
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return items, nil
}

func sortedTrend(byDate map[string]float64) []TrendPoint {
	out := make([]TrendPoint, 0, len(byDate))
	for date, total := range byDate {
		out = append(out, TrendPoint{Date: date, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func sortedByValue(m map[string]float64, limit int) []NameValue {
	out := make([]NameValue, 0, len(m))
	for name, value := range m {
		out = append(out, NameValue{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) markers() []string {
	if s.engine == nil {
		return nil
	}
	return s.engine.Get().CreditNoteMarkers
}
