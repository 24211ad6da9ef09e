package card

// ReservedSettingsTitle marks the pseudo-card carrying dashboard layout
// settings. It is never computed.
const ReservedSettingsTitle = "__DASHBOARD_SETTINGS__"

// Spec is one dashboard card definition as served by the card-configuration
// source.
type Spec struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ChartType   string   `json:"chartType"`
	GroupBy     string   `json:"groupBy"`
	ValueField  string   `json:"valueField"`
	Aggregation string   `json:"aggregation"`
	TopN        int      `json:"topN"`
	IsActive    bool     `json:"isActive"`
	Filters     []Filter `json:"filters"`
	CardConfig  *Config  `json:"cardConfig"`
}

// Filter restricts a card to rows whose field is in the value set.
type Filter struct {
	FilterField  string   `json:"filterField"`
	FilterValues []string `json:"filterValues"`
}

// Config carries chart-level options: stacking and multi-axis series.
type Config struct {
	SegmentBy       string   `json:"segmentBy"`
	MultiAxisSeries []Series `json:"multiAxisSeries"`
}

// Series is one line/bar of a multi-axis card. Each series is an independent
// measure sharing the card's group axis.
type Series struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Field       string   `json:"field"`
	Aggregation string   `json:"aggregation"`
	Axis        string   `json:"axis"`
	Type        string   `json:"type"`
	Filters     []Filter `json:"filters"`
}

// NameValue is one row of a plain card aggregation.
type NameValue struct {
	Name  string  `json:"name" gorm:"column:name"`
	Value float64 `json:"value" gorm:"column:value"`
}

// PivotRow is one group row of a segmented card: "name" plus one key per
// retained segment.
type PivotRow map[string]any

// SegmentedResult is the pivoted output of a stacked card.
type SegmentedResult struct {
	Groups      []string   `json:"groups"`
	Segments    []string   `json:"segments"`
	Data        []PivotRow `json:"data"`
	IsSegmented bool       `json:"isSegmented"`
}

// SeriesInfo labels a multi-axis result column.
type SeriesInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Alias string `json:"alias"`
	Axis  string `json:"axis"`
	Type  string `json:"type"`
	Field string `json:"field"`
}

// MultiAxisResult carries every series as a sibling column per group row.
type MultiAxisResult struct {
	Data        []map[string]any `json:"data"`
	SeriesInfo  []SeriesInfo     `json:"seriesInfo"`
	IsMultiAxis bool             `json:"isMultiAxis"`
}
