package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextCoercesScalars(t *testing.T) {
	var probe struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
		D Text `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"hello","b":5000.25,"c":null,"d":true}`), &probe))
	assert.Equal(t, "hello", probe.A.String())
	assert.Equal(t, "5000.25", probe.B.String())
	assert.Equal(t, "", probe.C.String())
	assert.Equal(t, "true", probe.D.String())
}

func TestIntTextCoercion(t *testing.T) {
	var probe struct {
		A IntText `json:"a"`
		B IntText `json:"b"`
		C IntText `json:"c"`
		D IntText `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42,"b":"42","c":"4.9","d":"junk"}`), &probe))
	assert.Equal(t, IntText(42), probe.A)
	assert.Equal(t, IntText(42), probe.B)
	assert.Equal(t, IntText(4), probe.C)
	assert.Equal(t, IntText(0), probe.D)
}

func TestDeriveSalespersonExplicitFieldWins(t *testing.T) {
	v := RawVoucher{
		Salesperson:     "Priya",
		PartyLedgerName: "Acme",
		LedgerEntries: []RawLedgerEntry{
			{LedgerName: "Acme", IsPartyLedger: "Yes", GroupName: "North Region"},
		},
	}
	assert.Equal(t, "Priya", v.DeriveSalesperson())
}

func TestDeriveSalespersonFallsBackToPartyLedgerGroup(t *testing.T) {
	v := RawVoucher{
		PartyLedgerName: "Acme",
		LedgerEntries: []RawLedgerEntry{
			{LedgerName: "Freight", IsPartyLedger: "No", GroupName: "Expenses"},
			{LedgerName: "Acme", IsPartyLedger: "Yes", GroupName: "North Region"},
		},
	}
	assert.Equal(t, "North Region", v.DeriveSalesperson())
}

func TestDeriveSalespersonAbsent(t *testing.T) {
	v := RawVoucher{PartyLedgerName: "Acme"}
	assert.Equal(t, "", v.DeriveSalesperson())
}
