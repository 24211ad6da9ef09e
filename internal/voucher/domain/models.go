package domain

// Voucher is one sales or credit-note transaction as cached from the upstream
// ledger. At most one live row exists per (masterid, guid); re-ingesting the
// same key replaces the row.
type Voucher struct {
	MasterID                string `gorm:"column:masterid;primaryKey" json:"masterid"`
	Guid                    string `gorm:"column:guid;primaryKey" json:"guid"`
	AlterID                 int64  `gorm:"column:alterid" json:"alterid"`
	VoucherTypeName         string `gorm:"column:vouchertypename" json:"vouchertypename"`
	VoucherTypeReservedName string `gorm:"column:vouchertypereservedname" json:"vouchertypereservedname"`
	VoucherNumber           string `gorm:"column:vouchernumber" json:"vouchernumber"`
	Date                    string `gorm:"column:date" json:"date"`
	PartyLedgerName         string `gorm:"column:partyledgername" json:"partyledgername"`
	PartyLedgerNameID       string `gorm:"column:partyledgernameid" json:"partyledgernameid"`
	State                   string `gorm:"column:state" json:"state"`
	Country                 string `gorm:"column:country" json:"country"`
	PartyGSTIN              string `gorm:"column:partygstin" json:"partygstin"`
	Pincode                 string `gorm:"column:pincode" json:"pincode"`
	Address                 string `gorm:"column:address" json:"address"`
	Amount                  string `gorm:"column:amount" json:"amount"`
	IsCancelled             string `gorm:"column:iscancelled" json:"iscancelled"`
	IsOptional              string `gorm:"column:isoptional" json:"isoptional"`
	Salesperson             string `gorm:"column:salesperson" json:"salesperson"`
}

func (Voucher) TableName() string { return "vouchers" }

// LedgerEntry is a ledger-side posting belonging to a voucher. Child rows are
// deleted and re-inserted wholesale whenever the parent voucher is re-ingested.
type LedgerEntry struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	VoucherMasterID  string `gorm:"column:voucher_masterid" json:"voucher_masterid"`
	Guid             string `gorm:"column:guid" json:"guid"`
	LedgerName       string `gorm:"column:ledgername" json:"ledgername"`
	LedgerNameID     string `gorm:"column:ledgernameid" json:"ledgernameid"`
	Amount           string `gorm:"column:amount" json:"amount"`
	IsDeemedPositive string `gorm:"column:isdeemedpositive" json:"isdeemedpositive"`
	IsPartyLedger    string `gorm:"column:ispartyledger" json:"ispartyledger"`
	GroupName        string `gorm:"column:groupname" json:"groupname"`
	GroupOfGroup     string `gorm:"column:groupofgroup" json:"groupofgroup"`
	GroupList        string `gorm:"column:grouplist" json:"grouplist"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// InventoryEntry is an item line belonging to a voucher. Same replace-wholesale
// discipline as LedgerEntry.
type InventoryEntry struct {
	ID              int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	VoucherMasterID string `gorm:"column:voucher_masterid" json:"voucher_masterid"`
	Guid            string `gorm:"column:guid" json:"guid"`
	StockItemName   string `gorm:"column:stockitemname" json:"stockitemname"`
	StockItemNameID string `gorm:"column:stockitemnameid" json:"stockitemnameid"`
	UOM             string `gorm:"column:uom" json:"uom"`
	ActualQty       string `gorm:"column:actualqty" json:"actualqty"`
	BilledQty       string `gorm:"column:billedqty" json:"billedqty"`
	Rate            string `gorm:"column:rate" json:"rate"`
	Discount        string `gorm:"column:discount" json:"discount"`
	Amount          string `gorm:"column:amount" json:"amount"`
	StockItemGroup  string `gorm:"column:stockitemgroup" json:"stockitemgroup"`
	GrossCost       string `gorm:"column:grosscost" json:"grosscost"`
	GrossExpense    string `gorm:"column:grossexpense" json:"grossexpense"`
	Profit          string `gorm:"column:profit" json:"profit"`
}

func (InventoryEntry) TableName() string { return "inventory_entries" }

// SyncMeta is a global key/value record (deliberately not tenant-scoped).
type SyncMeta struct {
	Key   string `gorm:"column:key;primaryKey" json:"key"`
	Value string `gorm:"column:value" json:"value"`
}

func (SyncMeta) TableName() string { return "sync_meta" }

const (
	SyncMetaLastSyncTime = "last_sync_time"
	SyncMetaLastSyncGuid = "last_sync_guid"
	SyncMetaLastSyncFrom = "last_sync_from"
	SyncMetaLastSyncTo   = "last_sync_to"
)

// DailyAggregate is the per-day KPI rollup. Derived, rebuildable in full from
// base tables at any time; never hand-edited.
type DailyAggregate struct {
	Guid       string  `gorm:"column:guid;primaryKey" json:"guid"`
	Date       string  `gorm:"column:date;primaryKey" json:"date"`
	TotalSales float64 `gorm:"column:total_sales" json:"total_sales"`
	TotalTxns  int64   `gorm:"column:total_txns" json:"total_txns"`
	MaxSale    float64 `gorm:"column:max_sale" json:"max_sale"`
}

func (DailyAggregate) TableName() string { return "daily_aggregates" }

// Dimension types present in DimensionalAggregate rows.
const (
	DimensionStockGroup  = "stockGroup"
	DimensionLedgerGroup = "ledgerGroup"
	DimensionCountry     = "country"
	DimensionSalesperson = "salesperson"
	DimensionItem        = "item"
)

// DimensionalAggregate is the per-day dimensional rollup. Same rebuild
// invariant as DailyAggregate.
type DimensionalAggregate struct {
	Guid          string  `gorm:"column:guid;primaryKey" json:"guid"`
	Date          string  `gorm:"column:date;primaryKey" json:"date"`
	DimensionType string  `gorm:"column:dimension_type;primaryKey" json:"dimension_type"`
	DimensionName string  `gorm:"column:dimension_name;primaryKey" json:"dimension_name"`
	Amount        float64 `gorm:"column:amount" json:"amount"`
	Profit        float64 `gorm:"column:profit" json:"profit"`
	Qty           float64 `gorm:"column:qty" json:"qty"`
}

func (DimensionalAggregate) TableName() string { return "dimensional_aggregates" }
