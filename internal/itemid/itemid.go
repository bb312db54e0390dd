// Package itemid handles the Albion item id grammar:
//
//	[T<1-8>_]<BASE>[_LEVEL<1-4>][@<1-4>]
//
// Enchanted resources carry both the _LEVEL suffix and the @ suffix,
// enchanted equipment only the @ suffix.
package itemid

import (
	"strconv"
	"strings"
)

// resourceBases is the closed set of raw and refined resource tokens.
var resourceBases = map[string]bool{
	"WOOD": true, "ORE": true, "FIBER": true, "HIDE": true, "ROCK": true,
	"PLANKS": true, "METALBAR": true, "CLOTH": true, "LEATHER": true, "STONEBLOCK": true,
}

// Parts is a parsed item id. Tier and Enchant are kept as strings ("0" when
// absent) since they round-trip into query strings.
type Parts struct {
	Base    string `json:"base"`
	Tier    string `json:"tier"`
	Enchant string `json:"enchant"`
}

// Parse splits an item id into base, tier and enchantment.
// Example: T4_HIDE_LEVEL1@1 -> {HIDE, 4, 1}.
func Parse(id string) Parts {
	base, enchant, found := strings.Cut(id, "@")
	if !found || enchant == "" {
		enchant = "0"
	}
	base = stripLevel(base)

	tier := "0"
	if len(base) >= 3 && base[0] == 'T' && base[1] >= '1' && base[1] <= '8' && base[2] == '_' {
		tier = base[1:2]
		base = base[3:]
	}
	return Parts{Base: base, Tier: tier, Enchant: enchant}
}

// IsResource reports whether the tier-stripped base is one of the known
// raw/refined resource tokens.
func IsResource(base string) bool {
	if len(base) >= 3 && base[0] == 'T' && base[1] >= '1' && base[1] <= '8' && base[2] == '_' {
		base = base[3:]
	}
	return resourceBases[strings.ToUpper(base)]
}

// WithEnchant rewrites id to carry enchantment e. Any existing enchantment
// encoding is removed first; e of "" or "0" yields the bare id.
func WithEnchant(id string, e string) string {
	base, _, _ := strings.Cut(id, "@")
	base = stripLevel(base)
	if e == "" || e == "0" {
		return base
	}
	if IsResource(base) {
		return base + "_LEVEL" + e + "@" + e
	}
	return base + "@" + e
}

// WithEnchantLevel is WithEnchant for an integer level.
func WithEnchantLevel(id string, e int) string {
	return WithEnchant(id, strconv.Itoa(e))
}

// stripLevel removes a trailing _LEVEL1.._LEVEL4.
func stripLevel(s string) string {
	const suffix = "_LEVEL"
	n := len(s)
	if n < len(suffix)+1 {
		return s
	}
	d := s[n-1]
	if d < '1' || d > '4' {
		return s
	}
	if s[n-1-len(suffix):n-1] != suffix {
		return s
	}
	return s[:n-1-len(suffix)]
}
