package engine

import (
	"fmt"
	"sync"
	"time"

	"albion-market/internal/config"
)

// PriceTimes records when each side of a cell was last seen on the market.
type PriceTimes struct {
	Buy  string `json:"buy,omitempty"`
	Sell string `json:"sell,omitempty"`
}

// PriceTable is the refine calculator state: settings plus one editable
// price pair per tier/enchant cell. Prices are seeded from market syncs and
// may be overridden by the user; marketPrices keeps the last market seed.
type PriceTable struct {
	mu          sync.RWMutex
	settings    config.RefineSettings
	prices      map[TierKey]TierPrice
	market      map[TierKey]TierPrice
	times       map[TierKey]PriceTimes
	lastApplied time.Time
	calc        Calculator
}

// NewPriceTable creates a table with every cell zeroed.
func NewPriceTable(settings config.RefineSettings) *PriceTable {
	t := &PriceTable{settings: settings}
	t.reset()
	return t
}

// allKeys returns the full 8x5 grid; the invalid cells below tier 4 stay zero.
func allKeys() []TierKey {
	keys := make([]TierKey, 0, 40)
	for tier := 1; tier <= 8; tier++ {
		for enchant := 0; enchant <= 4; enchant++ {
			keys = append(keys, Key(tier, enchant))
		}
	}
	return keys
}

func (t *PriceTable) reset() {
	keys := allKeys()
	t.prices = make(map[TierKey]TierPrice, len(keys))
	t.market = make(map[TierKey]TierPrice, len(keys))
	t.times = make(map[TierKey]PriceTimes, len(keys))
	for _, k := range keys {
		t.prices[k] = TierPrice{}
		t.market[k] = TierPrice{}
		t.times[k] = PriceTimes{}
	}
	t.lastApplied = time.Time{}
}

// Settings returns the current settings.
func (t *PriceTable) Settings() config.RefineSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// UpdateSettings replaces the settings. Changing the resource type, a city
// or the server zeroes every cell. It reports whether that reset happened.
func (t *PriceTable) UpdateSettings(s config.RefineSettings) (bool, error) {
	rt, err := ParseResourceType(s.ResourceType)
	if err != nil {
		return false, err
	}
	s.ResourceType = string(rt)

	t.mu.Lock()
	defer t.mu.Unlock()
	reset := s.ResourceType != t.settings.ResourceType ||
		s.BuyOrderCity != t.settings.BuyOrderCity ||
		s.SellOrderCity != t.settings.SellOrderCity ||
		s.Server != t.settings.Server
	t.settings = s
	if reset {
		t.reset()
	}
	return reset, nil
}

// SyncRequest describes the sync the current settings call for.
func (t *PriceTable) SyncRequest() (SyncRequest, error) {
	s := t.Settings()
	rt, err := ParseResourceType(s.ResourceType)
	if err != nil {
		return SyncRequest{}, err
	}
	return SyncRequest{
		Resource: rt,
		BuyCity:  s.BuyOrderCity,
		SellCity: s.SellOrderCity,
		Server:   s.Server,
	}, nil
}

// Hydrate seeds cells with the synced prices. Only nonzero sides are
// written, so a missing quote never erases a known price. A side the user
// has overridden is replaced only when the market value itself moved, so
// applying the same prices again leaves the table unchanged.
func (t *PriceTable) Hydrate(prices map[TierKey]SyncedPrice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hydrate(prices)
}

func (t *PriceTable) hydrate(prices map[TierKey]SyncedPrice) {
	for k, p := range prices {
		if _, ok := t.prices[k]; !ok {
			continue
		}
		cur, mkt, ts := t.prices[k], t.market[k], t.times[k]
		if p.Buy > 0 {
			if p.Buy != mkt.Buy {
				cur.Buy = p.Buy
			}
			mkt.Buy, ts.Buy = p.Buy, p.BuyTimestamp
		}
		if p.Sell > 0 {
			if p.Sell != mkt.Sell {
				cur.Sell = p.Sell
			}
			mkt.Sell, ts.Sell = p.Sell, p.SellTimestamp
		}
		t.prices[k], t.market[k], t.times[k] = cur, mkt, ts
	}
}

// ApplySync hydrates the table from res unless a newer result was already
// applied, or res was fetched for a resource, city or server that is no
// longer selected. Failed syncs are never applied. It reports whether res was used.
func (t *PriceTable) ApplySync(res SyncResult) bool {
	if res.Err != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !res.CompletedAt.After(t.lastApplied) {
		return false
	}
	if string(res.Resource) != t.settings.ResourceType ||
		res.BuyCity != t.settings.BuyOrderCity ||
		res.SellCity != t.settings.SellOrderCity ||
		res.Server != t.settings.Server {
		return false
	}
	t.hydrate(res.Prices)
	t.lastApplied = res.CompletedAt
	return true
}

// UpdatePrice overrides one side of a cell. side is "buy" or "sell".
func (t *PriceTable) UpdatePrice(k TierKey, side string, price float64) error {
	if !k.Valid() {
		return &RangeError{Tier: k.Tier, Enchant: k.Enchant}
	}
	if price < 0 {
		return fmt.Errorf("price must not be negative: %v", price)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.prices[k]
	switch side {
	case "buy":
		cur.Buy = price
	case "sell":
		cur.Sell = price
	default:
		return fmt.Errorf("unknown price side %q", side)
	}
	t.prices[k] = cur
	return nil
}

// Inputs returns a copy of what the profitability engine reads.
func (t *PriceTable) Inputs() Inputs {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inputs()
}

func (t *PriceTable) inputs() Inputs {
	prices := make(map[TierKey]TierPrice, len(t.prices))
	for k, v := range t.prices {
		prices[k] = v
	}
	return Inputs{
		Prices:     prices,
		ReturnRate: t.settings.ReturnRate,
		TaxRate:    t.settings.TaxRate,
		ShopFee:    t.settings.ShopFee,
		Quantity:   t.settings.Quantity,
	}
}

// Metrics computes (or reuses) the metrics for the current state.
func (t *PriceTable) Metrics() map[TierKey]CardMetrics {
	return t.calc.Compute(t.Inputs())
}

// Snapshot is a consistent copy of the table for display.
type Snapshot struct {
	Settings     config.RefineSettings   `json:"settings"`
	Prices       map[TierKey]TierPrice   `json:"prices"`
	MarketPrices map[TierKey]TierPrice   `json:"market_prices"`
	Timestamps   map[TierKey]PriceTimes  `json:"timestamps"`
	Metrics      map[TierKey]CardMetrics `json:"metrics"`
	IDs          map[TierKey]IDSet       `json:"ids"`
	LastSync     time.Time               `json:"last_sync"`
}

// Snapshot returns the current settings, prices and metrics, limited to the
// valid cells.
func (t *PriceTable) Snapshot() Snapshot {
	t.mu.RLock()
	in := t.inputs()
	snap := Snapshot{
		Settings:     t.settings,
		Prices:       make(map[TierKey]TierPrice, 28),
		MarketPrices: make(map[TierKey]TierPrice, 28),
		Timestamps:   make(map[TierKey]PriceTimes, 28),
		LastSync:     t.lastApplied,
	}
	for _, k := range Cells() {
		snap.Prices[k] = t.prices[k]
		snap.MarketPrices[k] = t.market[k]
		snap.Timestamps[k] = t.times[k]
	}
	t.mu.RUnlock()

	snap.Metrics = t.calc.Compute(in)
	if rt, err := ParseResourceType(snap.Settings.ResourceType); err == nil {
		snap.IDs, _ = BuildFullIDMap(rt)
	}
	return snap
}
