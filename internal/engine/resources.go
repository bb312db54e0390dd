package engine

import (
	"fmt"
	"strconv"
	"strings"

	"albion-market/internal/itemid"
)

// ResourceType is one of the five refinable resource families.
type ResourceType string

const (
	Wood  ResourceType = "WOOD"
	Ore   ResourceType = "ORE"
	Fiber ResourceType = "FIBER"
	Hide  ResourceType = "HIDE"
	Stone ResourceType = "STONE"
)

// ResourceTypes lists every resource type in display order.
var ResourceTypes = []ResourceType{Wood, Ore, Fiber, Hide, Stone}

type resourceInfo struct {
	rawBase, refinedBase string
	rawName, refinedName string
}

var resources = map[ResourceType]resourceInfo{
	Wood:  {"WOOD", "PLANKS", "Logs", "Planks"},
	Ore:   {"ORE", "METALBAR", "Ore", "Bars"},
	Fiber: {"FIBER", "CLOTH", "Fiber", "Cloth"},
	Hide:  {"HIDE", "LEATHER", "Hide", "Leather"},
	Stone: {"ROCK", "STONEBLOCK", "Rocks", "Blocks"},
}

// ConfigurationError reports an unknown resource type. It is a programming
// error in the caller, not a market condition.
type ConfigurationError struct {
	Resource string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown resource type %q", e.Resource)
}

// RangeError reports a tier/enchantment outside the refining table.
type RangeError struct {
	Tier, Enchant int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("tier %d enchant %d is outside the refining table", e.Tier, e.Enchant)
}

// ParseResourceType accepts any casing of a resource name.
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := resources[rt]; !ok {
		return "", &ConfigurationError{Resource: s}
	}
	return rt, nil
}

// DisplayName returns the human name of the raw or refined material.
func (rt ResourceType) DisplayName(refined bool) string {
	info, ok := resources[rt]
	if !ok {
		return string(rt)
	}
	if refined {
		return info.refinedName
	}
	return info.rawName
}

// TierKey identifies one calculator cell. It marshals as "tier.enchant".
type TierKey struct {
	Tier    int
	Enchant int
}

// Key builds a TierKey.
func Key(tier, enchant int) TierKey {
	return TierKey{Tier: tier, Enchant: enchant}
}

func (k TierKey) String() string {
	return strconv.Itoa(k.Tier) + "." + strconv.Itoa(k.Enchant)
}

// Valid reports whether the cell exists: tiers 1-8, enchant 0-4, and only
// enchant 0 below tier 4.
func (k TierKey) Valid() bool {
	if k.Tier < 1 || k.Tier > 8 || k.Enchant < 0 || k.Enchant > 4 {
		return false
	}
	return k.Tier >= 4 || k.Enchant == 0
}

func (k TierKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TierKey) UnmarshalText(b []byte) error {
	parsed, err := ParseTierKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseTierKey parses "tier.enchant".
func ParseTierKey(s string) (TierKey, error) {
	t, e, ok := strings.Cut(s, ".")
	if !ok {
		return TierKey{}, fmt.Errorf("invalid tier key %q", s)
	}
	tier, err1 := strconv.Atoi(t)
	enchant, err2 := strconv.Atoi(e)
	if err1 != nil || err2 != nil {
		return TierKey{}, fmt.Errorf("invalid tier key %q", s)
	}
	return TierKey{Tier: tier, Enchant: enchant}, nil
}

// Cells returns every valid cell in ascending tier then enchant order
// (tiers 1-3 contribute one cell each, tiers 4-8 five).
func Cells() []TierKey {
	keys := make([]TierKey, 0, 28)
	for tier := 1; tier <= 8; tier++ {
		for enchant := 0; enchant <= 4; enchant++ {
			k := Key(tier, enchant)
			if k.Valid() {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// RawID returns the item id of the raw material for a cell.
func RawID(rt ResourceType, tier, enchant int) (string, error) {
	return buildID(rt, tier, enchant, false)
}

// RefinedID returns the item id of the refined material for a cell.
func RefinedID(rt ResourceType, tier, enchant int) (string, error) {
	return buildID(rt, tier, enchant, true)
}

func buildID(rt ResourceType, tier, enchant int, refined bool) (string, error) {
	info, ok := resources[rt]
	if !ok {
		return "", &ConfigurationError{Resource: string(rt)}
	}
	if !Key(tier, enchant).Valid() {
		return "", &RangeError{Tier: tier, Enchant: enchant}
	}
	base := info.rawBase
	if refined {
		base = info.refinedBase
	}
	return itemid.WithEnchantLevel(fmt.Sprintf("T%d_%s", tier, base), enchant), nil
}

// IDSet is the raw/refined id pair of one cell.
type IDSet struct {
	Raw     string `json:"raw"`
	Refined string `json:"refined"`
}

// BuildFullIDMap returns the id pair for every valid cell of rt.
func BuildFullIDMap(rt ResourceType) (map[TierKey]IDSet, error) {
	cells := Cells()
	out := make(map[TierKey]IDSet, len(cells))
	for _, k := range cells {
		raw, err := RawID(rt, k.Tier, k.Enchant)
		if err != nil {
			return nil, err
		}
		refined, err := RefinedID(rt, k.Tier, k.Enchant)
		if err != nil {
			return nil, err
		}
		out[k] = IDSet{Raw: raw, Refined: refined}
	}
	return out, nil
}
