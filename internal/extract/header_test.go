package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
)

const tallyHeader = `Tax Invoice
A2Z BUILDWARES NEAR SOUTH BANK
Main Road, Koratty
Phone: 0480 2731800, 9876543210
GSTIN/UIN: 32ABCDE1234F1Z5
State Name : Kerala, Code : 32
E-Mail : a2zbuildwares@gmail.com
Invoice No.             Dated
A2Z/1234/24-25          12-Apr-24
Buyer (Bill to)
JOHN CONTRACTOR
GSTIN/UIN: 32ZZZZZ9999Z1Z9
`

func TestHeaderParseTallyInvoice(t *testing.T) {
	p := NewHeaderParser(lexicon.Default(), 0)
	h := p.Parse(tallyHeader)

	assert.Equal(t, "A2Z Buildwares", h.VendorName)
	assert.Equal(t, "32ABCDE1234F1Z5", h.TaxID)
	assert.Equal(t, "32", h.StateCode)
	assert.Equal(t, "NEAR SOUTH BANK, Main Road, Koratty", h.Address)
	assert.Equal(t, "+914802731800, +919876543210", h.Phone)
	assert.Equal(t, "a2zbuildwares@gmail.com", h.Email)
	assert.Equal(t, "A2Z/1234/24-25", h.InvoiceNumber)
	require.NotNil(t, h.InvoiceDate)
	assert.Equal(t, time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC), *h.InvoiceDate)
	assert.Equal(t, VendorSourceGSTIN, h.VendorSource)
	assert.Equal(t, 30.0, h.VendorScore)
	assert.False(t, h.VendorLowConfidence)
}

func TestHeaderWithoutTaxIDIsLowConfidence(t *testing.T) {
	p := NewHeaderParser(lexicon.Default(), 0)
	h := p.Parse("SREE CERAMICS\nNear Bus Stand, Thrissur\nInvoice No. : 77\n")
	assert.Equal(t, "Sree Ceramics", h.VendorName)
	assert.Equal(t, "77", h.InvoiceNumber)
	assert.Equal(t, VendorSourceHeader, h.VendorSource)
	assert.True(t, h.VendorLowConfidence)
}

func TestSanitizeVendorName(t *testing.T) {
	p := NewHeaderParser(lexicon.Default(), 0)
	tests := []struct {
		line, name, tail string
	}{
		{"A2Z BUILDWARES NEAR SOUTH BANK", "A2Z Buildwares", "NEAR SOUTH BANK"},
		{"A - 2 - Z BUILDWAERES", "A2Z Buildwares", ""},
		{"SREE HARDWARES 12-Apr-24", "Sree Hardwares", ""},
		{"SREE TILES LLP 2024/25/117", "Sree Tiles LLP", ""},
		{"   ", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, tail := p.SanitizeVendorName(tt.line)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.tail, tail)
		})
	}
}

func TestExtractInvoiceNumber(t *testing.T) {
	lx := lexicon.Default()
	tests := []struct {
		name, text, want string
	}{
		{"inline", "Invoice No. : INV-0042", "INV-0042"},
		{"next line after dated", "Invoice No.   Dated\nA2Z/88   3-Mar-24", "A2Z/88"},
		{"bill label", "Bill No: 1186", "1186"},
		{"no digits", "Invoice No. Dated\nCash\n\n\n\nLater 99", ""},
		{"absent", "Tax Invoice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractInvoiceNumber(lx, tt.text))
		})
	}
}

func TestParseInvoiceDate(t *testing.T) {
	for _, s := range []string{"5-Mar-24", "05-Mar-2024", "05/03/2024", "05-03-2024", "05/03/24", "2024-03-05"} {
		got := parseInvoiceDate(s)
		require.NotNil(t, got, s)
		assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), *got, s)
	}
	assert.Nil(t, parseInvoiceDate("34/24-25"))
}

func TestNormalizePhones(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Mob: +91-9876543210, 9876543210", []string{"+919876543210"}},
		{"Phone 0480 2731800", []string{"+914802731800"}},
		{"Tel 2731800", nil},
		{"9876543210 / 9447012345", []string{"+919876543210", "+919447012345"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhones(tt.in))
		})
	}
}
