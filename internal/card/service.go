package card

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/observability/metrics"
)

// ErrQuery marks card compilation or execution failures. Callers normally
// never see it: a failed card collapses to an empty result.
var ErrQuery = errors.New("card_query_failed")

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

var Module = fx.Module("card",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("card.service"),
		engine:  p.Engine,
		metrics: p.Metrics,
	}
}

// ComputeCards computes every card independently. A card that fails yields an
// empty result for that card only; the batch never fails as a whole.
func (s *Service) ComputeCards(ctx context.Context, specs []Spec, guid, from, to string) map[string]any {
	from, to = normalizeRange(from, to)
	results := make(map[string]any, len(specs))
	for _, spec := range specs {
		if spec.Title == ReservedSettingsTitle {
			continue
		}
		result, err := s.computeCard(ctx, spec, guid, from, to)
		if err != nil {
			s.log.Warn("card compute failed",
				zap.String("card_id", spec.ID),
				zap.String("title", spec.Title),
				zap.Error(err),
			)
			s.metrics.RecordCardFailure(ctx, spec.ChartType)
			result = []NameValue{}
		}
		results[spec.ID] = result
	}
	return results
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

func (s *Service) computeCard(ctx context.Context, spec Spec, guid, from, to string) (any, error) {
	if spec.GroupBy == "" || spec.ValueField == "" {
		return []NameValue{}, nil
	}

	engine := s.engine.Get()

	grp, err := resolveGroupBy(spec.GroupBy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	if spec.ChartType == "multiAxis" && spec.CardConfig != nil && len(spec.CardConfig.MultiAxisSeries) > 0 {
		return s.computeMultiAxis(ctx, spec, grp, guid, from, to, engine)
	}

	valExpr, err := resolveValue(spec.ValueField, spec.Aggregation, engine.CreditNoteMarkers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	filterSQL, filterArgs, err := buildFilters(spec.Filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	segmentBy := ""
	if spec.CardConfig != nil {
		segmentBy = spec.CardConfig.SegmentBy
	}
	needsInventory, needsLedger := joinNeeds(grp, spec.ValueField, segmentBy, spec.Filters)
	joins := buildJoins(needsInventory, needsLedger)

	if segmentBy != "" {
		return s.computeSegmented(ctx, spec, grp, valExpr, joins, filterSQL, filterArgs, guid, from, to, engine)
	}

	// Plain aggregation. Time-series cards stay unbounded; everything else is
	// capped to keep chart labels readable.
	limitClause := ""
	if spec.TopN > 0 {
		limitClause = fmt.Sprintf("LIMIT %d", spec.TopN)
	} else if spec.ChartType != "line" {
		limitClause = fmt.Sprintf("LIMIT %d", engine.DefaultTopN)
	}

	sql := fmt.Sprintf(`SELECT %s AS name, %s AS value
		FROM vouchers v%s
		WHERE v.guid = ? AND v.iscancelled = 'No' AND v.date >= ? AND v.date <= ?%s
		GROUP BY %s
		ORDER BY value DESC %s`,
		grp.expr, valExpr, joins, filterSQL, grp.expr, limitClause)

	args := append([]any{guid, from, to}, filterArgs...)
	rows := []NameValue{}
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return rows, nil
}

// computeSegmented pivots a stacked card: rank groups first, break those
// groups down by segment, keep the heaviest segments and fold the rest into
// "Other", zero-filling missing cells.
func (s *Service) computeSegmented(ctx context.Context, spec Spec, grp grouping, valExpr, joins, filterSQL string, filterArgs []any, guid, from, to string, engine config.EngineConfig) (any, error) {
	seg, err := resolveSegment(spec.CardConfig.SegmentBy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	extraJoin := ""
	if seg.table == "i" && !strings.Contains(joins, "inventory_entries") {
		extraJoin = " JOIN inventory_entries i ON i.voucher_masterid = v.masterid AND i.guid = v.guid"
	}

	topN := engine.DefaultTopN
	if spec.TopN > 0 {
		topN = spec.TopN
	}

	groupSQL := fmt.Sprintf(`SELECT %s AS name, %s AS value
		FROM vouchers v%s%s
		WHERE v.guid = ? AND v.iscancelled = 'No' AND v.date >= ? AND v.date <= ?%s
		GROUP BY %s
		ORDER BY value DESC LIMIT %d`,
		grp.expr, valExpr, joins, extraJoin, filterSQL, grp.expr, topN)

	groups := []NameValue{}
	args := append([]any{guid, from, to}, filterArgs...)
	if err := s.db.WithContext(ctx).Raw(groupSQL, args...).Scan(&groups).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if len(groups) == 0 {
		return SegmentedResult{Groups: []string{}, Segments: []string{}, Data: []PivotRow{}, IsSegmented: true}, nil
	}

	groupNames := make([]string, len(groups))
	for i, g := range groups {
		groupNames[i] = g.Name
	}

	type segRow struct {
		Name    string  `gorm:"column:name"`
		Segment string  `gorm:"column:segment"`
		Value   float64 `gorm:"column:value"`
	}
	segSQL := fmt.Sprintf(`SELECT %s AS name, %s AS segment, %s AS value
		FROM vouchers v%s%s
		WHERE v.guid = ? AND v.iscancelled = 'No' AND v.date >= ? AND v.date <= ?
		AND %s IN (%s)%s
		GROUP BY %s, %s
		ORDER BY %s, %s`,
		grp.expr, seg.expr, valExpr, joins, extraJoin,
		grp.expr, placeholders(len(groupNames)), filterSQL,
		grp.expr, seg.expr, grp.expr, seg.expr)

	segArgs := []any{guid, from, to}
	for _, name := range groupNames {
		segArgs = append(segArgs, name)
	}
	segArgs = append(segArgs, filterArgs...)

	raw := []segRow{}
	if err := s.db.WithContext(ctx).Raw(segSQL, segArgs...).Scan(&raw).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	// Rank segments by total magnitude so the stack keeps its heaviest members.
	segTotals := map[string]float64{}
	segOrder := []string{}
	for _, r := range raw {
		if _, seen := segTotals[r.Segment]; !seen {
			segOrder = append(segOrder, r.Segment)
		}
		segTotals[r.Segment] += math.Abs(r.Value)
	}
	sort.SliceStable(segOrder, func(i, j int) bool {
		return segTotals[segOrder[i]] > segTotals[segOrder[j]]
	})

	maxSegments := engine.MaxSegments
	topSegments := segOrder
	hasOther := len(segOrder) > maxSegments
	if hasOther {
		topSegments = segOrder[:maxSegments]
	}
	segments := append([]string{}, topSegments...)
	if hasOther {
		segments = append(segments, "Other")
	}

	retained := map[string]bool{}
	for _, segment := range topSegments {
		retained[segment] = true
	}

	pivoted := make([]PivotRow, 0, len(groupNames))
	for _, name := range groupNames {
		row := PivotRow{"name": name}
		for _, segment := range topSegments {
			row[segment] = float64(0)
		}
		var other float64
		for _, r := range raw {
			if r.Name != name {
				continue
			}
			if retained[r.Segment] {
				row[r.Segment] = r.Value
			} else {
				other += r.Value
			}
		}
		if hasOther {
			row["Other"] = other
		}
		pivoted = append(pivoted, row)
	}

	return SegmentedResult{
		Groups:      groupNames,
		Segments:    segments,
		Data:        pivoted,
		IsSegmented: true,
	}, nil
}

// computeMultiAxis runs every series as a sibling SELECT column over the
// shared group axis.
func (s *Service) computeMultiAxis(ctx context.Context, spec Spec, grp grouping, guid, from, to string, engine config.EngineConfig) (any, error) {
	series := spec.CardConfig.MultiAxisSeries
	filterSQL, filterArgs, err := buildFilters(spec.Filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	needsInventory := grp.table == "i"
	needsLedger := grp.table == "l" || filtersNeedLedger(spec.Filters)
	for _, sr := range series {
		if strings.Contains(sr.Field, "inventory") || sr.Field == "profit" {
			needsInventory = true
		}
		if filtersNeedLedger(sr.Filters) {
			needsLedger = true
		}
	}
	joins := buildJoins(needsInventory, needsLedger)

	selectParts := []string{grp.expr + " AS name"}
	var selectArgs []any
	info := make([]SeriesInfo, 0, len(series))
	for _, sr := range series {
		agg := sr.Aggregation
		if agg == "" {
			agg = "sum"
		}
		pred, predArgs, err := buildPredicate(sr.Filters)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		valExpr, err := resolveSeriesValue(sr.Field, agg, engine.CreditNoteMarkers, pred)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		selectArgs = append(selectArgs, predArgs...)
		alias := sr.ID
		if alias == "" {
			alias = sr.Label
		}
		if alias == "" {
			alias = sr.Field
		}
		selectParts = append(selectParts, fmt.Sprintf(`%s AS "%s"`, valExpr, escapeAlias(alias)))
		info = append(info, SeriesInfo{
			ID: sr.ID, Label: sr.Label, Alias: alias,
			Axis: sr.Axis, Type: sr.Type, Field: sr.Field,
		})
	}

	sql := fmt.Sprintf(`SELECT %s
		FROM vouchers v%s
		WHERE v.guid = ? AND v.iscancelled = 'No' AND v.date >= ? AND v.date <= ?%s
		GROUP BY %s
		ORDER BY %s
		LIMIT %d`,
		strings.Join(selectParts, ", "), joins, filterSQL, grp.expr, grp.expr, engine.MultiAxisGroupCap)

	// Select-list placeholders bind before the WHERE clause's.
	args := append(selectArgs, guid, from, to)
	args = append(args, filterArgs...)
	rows := []map[string]any{}
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return MultiAxisResult{Data: rows, SeriesInfo: info, IsMultiAxis: true}, nil
}

func escapeAlias(alias string) string {
	return strings.ReplaceAll(alias, `"`, "")
}
