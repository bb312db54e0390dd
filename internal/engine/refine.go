package engine

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Recipe is what one refine craft consumes: raw units of the same tier and
// refined units of the tier below.
type Recipe struct {
	Tier              int `json:"tier"`
	RawAmount         int `json:"raw_amount"`
	RefinedPrevAmount int `json:"refined_prev_amount"`
}

// Recipes is the refining table by tier.
var Recipes = map[int]Recipe{
	1: {1, 1, 0},
	2: {2, 1, 0},
	3: {3, 2, 1},
	4: {4, 2, 1},
	5: {5, 3, 1},
	6: {6, 4, 1},
	7: {7, 5, 1},
	8: {8, 5, 1},
}

// Nutrition is the per-tier nutrition constant that scales the station fee.
var Nutrition = map[int]float64{
	1: 0, 2: 0, 3: 0,
	4: 112,
	5: 224,
	6: 448,
	7: 896,
	8: 1792,
}

// RecipeFor returns the recipe of tier, or a raw-only recipe for tiers
// outside the table.
func RecipeFor(tier int) Recipe {
	if r, ok := Recipes[tier]; ok {
		return r
	}
	return Recipe{Tier: tier, RawAmount: 1}
}

// TierPrice is the editable buy (raw input) and sell (refined output) price
// of a cell.
type TierPrice struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Inputs is everything the profitability engine reads.
type Inputs struct {
	Prices     map[TierKey]TierPrice `json:"prices"`
	ReturnRate float64               `json:"return_rate"` // percent
	TaxRate    float64               `json:"tax_rate"`    // percent
	ShopFee    float64               `json:"shop_fee"`
	Quantity   int                   `json:"quantity"`
}

// MarketFlags records which prices are present.
type MarketFlags struct {
	Buy  bool `json:"buy"`
	Sell bool `json:"sell"`
}

// CardMetrics is the derived profitability of one cell.
type CardMetrics struct {
	Tier                  int         `json:"tier"`
	Enchant               int         `json:"enchant"`
	BuyPrice              float64     `json:"buy_price"`
	SellPrice             float64     `json:"sell_price"`
	IntermediatePrice     float64     `json:"intermediate_price"`
	IntermediateKey       *TierKey    `json:"intermediate_key,omitempty"`
	GrossMaterialCost     float64     `json:"gross_material_cost"`
	EffectiveMaterialCost float64     `json:"effective_material_cost"`
	SalesTax              float64     `json:"sales_tax"`
	UsageFee              float64     `json:"usage_fee"`
	CostPerUnit           float64     `json:"cost_per_unit"`
	ProfitPerUnit         float64     `json:"profit_per_unit"`
	TotalProfit           float64     `json:"total_profit"`
	IsReliable            bool        `json:"is_reliable"`
	HasMarketPrices       MarketFlags `json:"has_market_prices"`
}

func clampRate(rate float64) float64 {
	return math.Min(math.Max(rate, 0), 100)
}

// ComputeAll returns metrics for every refinable cell (tiers 2-8).
//
// The intermediate input of a cell is the stored sell price of the cell one
// tier below (same enchantment from tier 5 up, flat below tier 4). It is
// never replaced by that cell's computed cost; a zero price marks the cell
// unreliable instead.
func ComputeAll(in Inputs) map[TierKey]CardMetrics {
	rr := clampRate(in.ReturnRate) / 100
	tax := clampRate(in.TaxRate) / 100

	out := make(map[TierKey]CardMetrics, 27)
	for tier := 2; tier <= 8; tier++ {
		for enchant := 0; enchant <= 4; enchant++ {
			key := Key(tier, enchant)
			if !key.Valid() {
				continue
			}
			out[key] = computeCell(in, key, rr, tax)
		}
	}
	return out
}

func computeCell(in Inputs, key TierKey, rr, tax float64) CardMetrics {
	recipe := RecipeFor(key.Tier)
	price := in.Prices[key]
	rawPrice, sellPrice := price.Buy, price.Sell

	m := CardMetrics{
		Tier:      key.Tier,
		Enchant:   key.Enchant,
		BuyPrice:  rawPrice,
		SellPrice: sellPrice,
		HasMarketPrices: MarketFlags{
			Buy:  rawPrice > 0,
			Sell: sellPrice > 0,
		},
	}

	if recipe.RefinedPrevAmount > 0 {
		prevEnchant := key.Enchant
		if key.Tier-1 < 4 {
			prevEnchant = 0
		}
		prevKey := Key(key.Tier-1, prevEnchant)
		m.IntermediateKey = &prevKey
		m.IntermediatePrice = in.Prices[prevKey].Sell
	}

	m.GrossMaterialCost = float64(recipe.RawAmount)*rawPrice + float64(recipe.RefinedPrevAmount)*m.IntermediatePrice
	m.EffectiveMaterialCost = m.GrossMaterialCost * (1 - rr)
	m.SalesTax = sellPrice * tax
	m.UsageFee = Nutrition[key.Tier] * in.ShopFee / 20000

	cost := m.EffectiveMaterialCost + m.SalesTax + m.UsageFee
	m.CostPerUnit = math.Max(0, cost)
	m.ProfitPerUnit = sellPrice - cost
	m.TotalProfit = m.ProfitPerUnit * float64(in.Quantity)

	m.IsReliable = rawPrice > 0 && sellPrice > 0 &&
		(recipe.RefinedPrevAmount == 0 || m.IntermediatePrice > 0)
	return m
}

// Calculator memoizes ComputeAll on the content of its inputs, so an
// unchanged table is not recomputed and any changed price is.
type Calculator struct {
	mu   sync.Mutex
	hash uint64
	last map[TierKey]CardMetrics
}

// Compute returns ComputeAll(in), reusing the previous result when the
// inputs hash the same. The returned map must not be modified.
func (c *Calculator) Compute(in Inputs) map[TierKey]CardMetrics {
	h := HashInputs(in)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && c.hash == h {
		return c.last
	}
	c.last = ComputeAll(in)
	c.hash = h
	return c.last
}

// HashInputs hashes the fields ComputeAll reads, in a fixed key order.
func HashInputs(in Inputs) uint64 {
	keys := make([]TierKey, 0, len(in.Prices))
	for k := range in.Prices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Tier != keys[j].Tier {
			return keys[i].Tier < keys[j].Tier
		}
		return keys[i].Enchant < keys[j].Enchant
	})

	d := xxhash.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	writeU64(math.Float64bits(in.ReturnRate))
	writeU64(math.Float64bits(in.TaxRate))
	writeU64(math.Float64bits(in.ShopFee))
	writeU64(uint64(int64(in.Quantity)))
	for _, k := range keys {
		p := in.Prices[k]
		writeU64(uint64(k.Tier)<<8 | uint64(k.Enchant))
		writeU64(math.Float64bits(p.Buy))
		writeU64(math.Float64bits(p.Sell))
	}
	return d.Sum64()
}
