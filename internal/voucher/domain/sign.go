package domain

import (
	"fmt"
	"strings"
)

// The credit-note sign convention is applied uniformly wherever amounts are
// aggregated: a voucher whose reserved type name matches a credit-note marker
// contributes its amount with a flipped sign. The helpers below render that
// convention as SQL fragments so base-table queries, the scratch fact set and
// the rollups all share one definition.

// CreditNoteExpr returns a boolean SQL expression that is true when the given
// reserved-type-name column matches any configured credit-note marker.
func CreditNoteExpr(typeCol string, markers []string) string {
	if len(markers) == 0 {
		markers = []string{"Credit Note"}
	}
	terms := make([]string, 0, len(markers))
	for _, m := range markers {
		escaped := strings.ReplaceAll(m, "'", "''")
		terms = append(terms, fmt.Sprintf("%s LIKE '%%%s%%'", typeCol, escaped))
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// SignedExpr returns a SQL expression casting valueCol to REAL and negating it
// for credit notes.
func SignedExpr(valueCol, typeCol string, markers []string) string {
	return fmt.Sprintf(
		"CASE WHEN %s THEN -CAST(%s AS REAL) ELSE CAST(%s AS REAL) END",
		CreditNoteExpr(typeCol, markers), valueCol, valueCol,
	)
}
