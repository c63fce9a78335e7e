package constants

import (
	"strings"
)

// UOM is a unit of measure token printed next to a line quantity.
type UOM string

const (
	UOMNos   UOM = "NOS"
	UOMPcs   UOM = "PCS"
	UOMBox   UOM = "BOX"
	UOMSet   UOM = "SET"
	UOMPair  UOM = "PAIR"
	UOMPkt   UOM = "PKT"
	UOMRoll  UOM = "ROLL"
	UOMMeter UOM = "MTR"
	UOMLitre UOM = "LTR"
)

var allUOMs = []UOM{
	UOMNos,
	UOMPcs,
	UOMBox,
	UOMSet,
	UOMPair,
	UOMPkt,
	UOMRoll,
	UOMMeter,
	UOMLitre,
}

// UOMTokens lists every spelling the line grammars accept, longest first so
// that alternations prefer METER over MTR-like prefixes.
func UOMTokens() []string {
	return []string{"METER", "PAIR", "ROLL", "NOS", "PCS", "BOX", "SET", "PKT", "MTR", "LTR"}
}

// CanonicalizeUOM maps a printed unit token to its canonical form.
func CanonicalizeUOM(input string) (UOM, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]UOM{
		"NO":     UOMNos,
		"NOS.":   UOMNos,
		"PC":     UOMPcs,
		"PIECE":  UOMPcs,
		"PIECES": UOMPcs,
		"METER":  UOMMeter,
		"METRE":  UOMMeter,
		"MTRS":   UOMMeter,
		"LITRE":  UOMLitre,
		"LITER":  UOMLitre,
		"PACKET": UOMPkt,
	}
	if u, ok := synonyms[normalized]; ok {
		return u, true
	}

	for _, u := range allUOMs {
		if normalized == string(u) {
			return u, true
		}
	}
	return "", false
}
