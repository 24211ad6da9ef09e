package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Text coerces any JSON value to a string during unmarshalling. The ingestion
// boundary must never persist a non-scalar value: strings pass through, null
// becomes "", numbers and booleans keep their literal form, and objects or
// arrays are stored as their compact JSON serialization.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*t = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(trimmed)
	return nil
}

func (t Text) String() string { return string(t) }

// IntText coerces a JSON number or numeric string to an integer, falling back
// to zero on anything unparseable.
type IntText int64

func (i *IntText) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if trimmed == "" || trimmed == "null" {
		*i = 0
		return nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(trimmed, 64); ferr == nil {
			*i = IntText(int64(f))
			return nil
		}
		*i = 0
		return nil
	}
	*i = IntText(parsed)
	return nil
}

// RawVoucher is one voucher as delivered by the upstream ledger extract.
type RawVoucher struct {
	MasterID                Text                `json:"masterid"`
	AlterID                 IntText             `json:"alterid"`
	VoucherTypeName         Text                `json:"vouchertypename"`
	VoucherTypeReservedName Text                `json:"vouchertypereservedname"`
	VoucherNumber           Text                `json:"vouchernumber"`
	Date                    Text                `json:"date"`
	PartyLedgerName         Text                `json:"partyledgername"`
	PartyLedgerNameID       Text                `json:"partyledgernameid"`
	State                   Text                `json:"state"`
	Country                 Text                `json:"country"`
	PartyGSTIN              Text                `json:"partygstin"`
	Pincode                 Text                `json:"pincode"`
	Address                 Text                `json:"address"`
	Amount                  Text                `json:"amount"`
	IsCancelled             Text                `json:"iscancelled"`
	IsOptional              Text                `json:"isoptional"`
	Salesperson             Text                `json:"salesperson"`
	LedgerEntries           []RawLedgerEntry    `json:"ledgerentries"`
	InventoryEntries        []RawInventoryEntry `json:"allinventoryentries"`
}

type RawLedgerEntry struct {
	LedgerName       Text `json:"ledgername"`
	LedgerNameID     Text `json:"ledgernameid"`
	Amount           Text `json:"amount"`
	IsDeemedPositive Text `json:"isdeemedpositive"`
	IsPartyLedger    Text `json:"ispartyledger"`
	GroupName        Text `json:"group"`
	GroupOfGroup     Text `json:"groupofgroup"`
	GroupList        Text `json:"grouplist"`
}

type RawInventoryEntry struct {
	StockItemName   Text `json:"stockitemname"`
	StockItemNameID Text `json:"stockitemnameid"`
	UOM             Text `json:"uom"`
	ActualQty       Text `json:"actualqty"`
	BilledQty       Text `json:"billedqty"`
	Rate            Text `json:"rate"`
	Discount        Text `json:"discount"`
	Amount          Text `json:"amount"`
	StockItemGroup  Text `json:"stockitemgroup"`
	GrossCost       Text `json:"grosscost"`
	GrossExpense    Text `json:"grossexpense"`
	Profit          Text `json:"profit"`
}

// DeriveSalesperson resolves the salesperson for a voucher: an explicit payload
// field wins; otherwise the party ledger entry matching partyledgername
// contributes its accounting-group name; absence yields "".
func (v RawVoucher) DeriveSalesperson() string {
	if s := strings.TrimSpace(v.Salesperson.String()); s != "" {
		return s
	}
	party := v.PartyLedgerName.String()
	for _, le := range v.LedgerEntries {
		if le.IsPartyLedger.String() == "Yes" && le.LedgerName.String() == party {
			return le.GroupName.String()
		}
	}
	return ""
}
