package card

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// grouping is a resolved groupBy: a SQL expression plus the table it reads.
type grouping struct {
	expr  string
	table string // "v", "i" or "l"
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const (
	quarterExpr = "SUBSTR(v.date,1,4)||'-Q'||((CAST(SUBSTR(v.date,5,2) AS INTEGER)-1)/3+1)"
	weekExpr    = "SUBSTR(v.date,1,4)||'-W'||PRINTF('%02d',(CAST(SUBSTR(v.date,5,2) AS INTEGER)-1)*4+CAST(SUBSTR(v.date,7,2) AS INTEGER)/7+1)"
)

// resolveGroupBy maps a card's groupBy keyword to a SQL expression. Unknown
// keywords fall back to a voucher column of that name when it is a plain
// identifier.
func resolveGroupBy(groupBy string) (grouping, error) {
	switch groupBy {
	case "month":
		return grouping{expr: "SUBSTR(v.date,1,6)", table: "v"}, nil
	case "quarter":
		return grouping{expr: quarterExpr, table: "v"}, nil
	case "date":
		return grouping{expr: "v.date", table: "v"}, nil
	case "week":
		return grouping{expr: weekExpr, table: "v"}, nil
	case "item":
		return grouping{expr: "i.stockitemname", table: "i"}, nil
	case "customer":
		return grouping{expr: "v.partyledgername", table: "v"}, nil
	case "state":
		return grouping{expr: "v.state", table: "v"}, nil
	case "country":
		return grouping{expr: "COALESCE(NULLIF(v.country,''),'Unknown')", table: "v"}, nil
	case "salesperson":
		return grouping{expr: "COALESCE(NULLIF(v.salesperson,''),'Unknown')", table: "v"}, nil
	case "allinventoryentries.stockitemgroup":
		return grouping{expr: "i.stockitemgroup", table: "i"}, nil
	case "ledgerentries.group":
		return grouping{expr: "l.groupname", table: "l"}, nil
	}
	if !identPattern.MatchString(groupBy) {
		return grouping{}, fmt.Errorf("invalid groupBy %q", groupBy)
	}
	return grouping{expr: "v." + groupBy, table: "v"}, nil
}

// resolveValue maps a valueField plus aggregation to a SQL measure. Count
// measures resolve their synonyms; sum measures apply the credit-note sign.
func resolveValue(valueField, aggregation string, markers []string) (string, error) {
	if aggregation == "count" {
		switch valueField {
		case "transactions", "unique_orders":
			return "COUNT(DISTINCT v.masterid)", nil
		case "unique_customers":
			return "COUNT(DISTINCT v.partyledgername)", nil
		}
		return "COUNT(*)", nil
	}

	switch valueField {
	case "amount":
		return "SUM(" + domain.SignedExpr("v.amount", "v.vouchertypereservedname", markers) + ")", nil
	case "profit":
		return "SUM(" + domain.SignedExpr("i.profit", "v.vouchertypereservedname", markers) + ")", nil
	case "allinventoryentries.accountingallocation.amount":
		return "SUM(" + domain.SignedExpr("i.amount", "v.vouchertypereservedname", markers) + ")", nil
	case "transactions", "unique_orders":
		return "COUNT(DISTINCT v.masterid)", nil
	case "unique_customers":
		return "COUNT(DISTINCT v.partyledgername)", nil
	}
	if !identPattern.MatchString(valueField) {
		return "", fmt.Errorf("invalid valueField %q", valueField)
	}
	return fmt.Sprintf("SUM(CAST(v.%s AS REAL))", valueField), nil
}

func buildJoins(needsInventory, needsLedger bool) string {
	var joins string
	if needsInventory {
		joins += " JOIN inventory_entries i ON i.voucher_masterid = v.masterid AND i.guid = v.guid"
	}
	if needsLedger {
		joins += " JOIN ledger_entries l ON l.voucher_masterid = v.masterid AND l.guid = v.guid"
	}
	return joins
}

var filterFieldMap = map[string]string{
	"ledgerentries.group":                "l.groupname",
	"ledgerentries.ledgername":           "l.ledgername",
	"allinventoryentries.stockitemgroup": "i.stockitemgroup",
	"allinventoryentries.stockitemname":  "i.stockitemname",
}

// buildFilters renders card filters as AND-ed IN clauses.
func buildFilters(filters []Filter) (string, []any, error) {
	var sql strings.Builder
	var args []any
	for _, f := range filters {
		if f.FilterField == "" || len(f.FilterValues) == 0 {
			continue
		}
		col, ok := filterFieldMap[f.FilterField]
		if !ok {
			if !identPattern.MatchString(f.FilterField) {
				return "", nil, fmt.Errorf("invalid filterField %q", f.FilterField)
			}
			col = f.FilterField
		}
		sql.WriteString(" AND " + col + " IN (" + placeholders(len(f.FilterValues)) + ")")
		for _, v := range f.FilterValues {
			args = append(args, v)
		}
	}
	return sql.String(), args, nil
}

// buildPredicate renders filters as a bare boolean expression, usable inside
// a CASE WHEN rather than appended to a WHERE clause.
func buildPredicate(filters []Filter) (string, []any, error) {
	sql, args, err := buildFilters(filters)
	if err != nil || sql == "" {
		return "", args, err
	}
	return strings.TrimPrefix(sql, " AND "), args, nil
}

// resolveSeriesValue renders one multi-axis series' aggregate. A series with
// its own filters is restricted row-wise via CASE WHEN so siblings sharing
// the query stay unaffected.
func resolveSeriesValue(valueField, aggregation string, markers []string, pred string) (string, error) {
	if pred == "" {
		return resolveValue(valueField, aggregation, markers)
	}
	if aggregation == "count" || valueField == "transactions" ||
		valueField == "unique_orders" || valueField == "unique_customers" {
		switch valueField {
		case "unique_customers":
			return fmt.Sprintf("COUNT(DISTINCT CASE WHEN %s THEN v.partyledgername END)", pred), nil
		case "transactions", "unique_orders":
			return fmt.Sprintf("COUNT(DISTINCT CASE WHEN %s THEN v.masterid END)", pred), nil
		}
		return fmt.Sprintf("COUNT(CASE WHEN %s THEN 1 END)", pred), nil
	}

	var inner string
	switch valueField {
	case "amount":
		inner = domain.SignedExpr("v.amount", "v.vouchertypereservedname", markers)
	case "profit":
		inner = domain.SignedExpr("i.profit", "v.vouchertypereservedname", markers)
	case "allinventoryentries.accountingallocation.amount":
		inner = domain.SignedExpr("i.amount", "v.vouchertypereservedname", markers)
	default:
		if !identPattern.MatchString(valueField) {
			return "", fmt.Errorf("invalid valueField %q", valueField)
		}
		inner = fmt.Sprintf("CAST(v.%s AS REAL)", valueField)
	}
	return fmt.Sprintf("SUM(CASE WHEN %s THEN %s ELSE 0 END)", pred, inner), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func filtersNeedLedger(filters []Filter) bool {
	for _, f := range filters {
		if strings.HasPrefix(f.FilterField, "ledgerentries") {
			return true
		}
	}
	return false
}

// joinNeeds infers required joins from the grouping, the measure and the
// segment dimension.
func joinNeeds(grp grouping, valueField, segmentBy string, filters []Filter) (inventory, ledger bool) {
	inventory = grp.table == "i" ||
		strings.Contains(valueField, "inventory") ||
		valueField == "profit" ||
		segmentBy == "item"
	ledger = grp.table == "l" || filtersNeedLedger(filters)
	return inventory, ledger
}

// resolveSegment maps a segmentBy keyword like resolveGroupBy, minus the
// dimensions that make no sense as stack segments.
func resolveSegment(segmentBy string) (grouping, error) {
	switch segmentBy {
	case "date":
		return grouping{expr: "v.date", table: "v"}, nil
	case "month":
		return grouping{expr: "SUBSTR(v.date,1,6)", table: "v"}, nil
	case "week":
		return grouping{expr: weekExpr, table: "v"}, nil
	case "quarter":
		return grouping{expr: quarterExpr, table: "v"}, nil
	case "item":
		return grouping{expr: "i.stockitemname", table: "i"}, nil
	case "customer":
		return grouping{expr: "v.partyledgername", table: "v"}, nil
	}
	if !identPattern.MatchString(segmentBy) {
		return grouping{}, fmt.Errorf("invalid segmentBy %q", segmentBy)
	}
	return grouping{expr: "v." + segmentBy, table: "v"}, nil
}
