package engine

import (
	"context"
	"fmt"
	"time"

	"albion-market/internal/albion"
	"albion-market/internal/logger"
)

// PriceFetcher is the slice of the price client the synchronizer needs.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, req albion.PriceRequest) ([]albion.PriceQuote, error)
}

// SyncRequest selects what to synchronize.
type SyncRequest struct {
	Resource ResourceType
	BuyCity  string
	SellCity string
	Server   string
}

// SyncedPrice is the best market price found for a cell. Buy is what the raw
// material can be bought for (highest buy order at the buy city), Sell what
// the refined output sells for (cheapest listing at the sell city). Zero
// means no data.
type SyncedPrice struct {
	Buy           float64 `json:"buy"`
	Sell          float64 `json:"sell"`
	BuyTimestamp  string  `json:"buy_timestamp,omitempty"`
	SellTimestamp string  `json:"sell_timestamp,omitempty"`
}

// SyncResult is one completed synchronization.
type SyncResult struct {
	Resource    ResourceType
	BuyCity     string
	SellCity    string
	Server      string
	Prices      map[TierKey]SyncedPrice
	CompletedAt time.Time
	Err         error
}

type role int

const (
	roleRaw role = iota
	roleRefined
)

type target struct {
	key  TierKey
	role role
}

// Synchronizer pulls market prices for every refine cell of a resource in a
// single batched request.
type Synchronizer struct {
	prices PriceFetcher
	now    func() time.Time
}

// NewSynchronizer creates a Synchronizer backed by prices.
func NewSynchronizer(prices PriceFetcher) *Synchronizer {
	return &Synchronizer{prices: prices, now: time.Now}
}

// Sync fetches prices for every cell of req.Resource. An unknown resource is
// returned as a *ConfigurationError. A failed fetch yields an empty price map
// with Err set, so applying it leaves existing prices untouched.
func (s *Synchronizer) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	idMap, err := BuildFullIDMap(req.Resource)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{
		Resource: req.Resource,
		BuyCity:  req.BuyCity,
		SellCity: req.SellCity,
		Server:   req.Server,
		Prices:   map[TierKey]SyncedPrice{},
	}

	reverse := make(map[string][]target, 2*len(idMap))
	ids := make([]string, 0, 2*len(idMap))
	add := func(id string, t target) {
		if _, seen := reverse[id]; !seen {
			ids = append(ids, id)
		}
		reverse[id] = append(reverse[id], t)
	}
	for _, k := range Cells() {
		set := idMap[k]
		add(set.Raw, target{k, roleRaw})
		add(set.Refined, target{k, roleRefined})
	}

	cities := []string{req.BuyCity}
	if req.SellCity != req.BuyCity {
		cities = append(cities, req.SellCity)
	}

	quotes, err := s.prices.FetchPrices(ctx, albion.PriceRequest{
		Server:  req.Server,
		ItemIDs: ids,
		Cities:  cities,
	})
	res.CompletedAt = s.now()
	if err != nil {
		logger.Warn("Refine", fmt.Sprintf("Price sync for %s failed: %v", req.Resource, err))
		res.Err = err
		return res, nil
	}

	for _, q := range quotes {
		for _, t := range reverse[q.ItemID] {
			cur := res.Prices[t.key]
			switch t.role {
			case roleRaw:
				if q.City != req.BuyCity || q.BuyPriceMax <= 0 {
					continue
				}
				if p := float64(q.BuyPriceMax); p > cur.Buy {
					cur.Buy = p
					cur.BuyTimestamp = q.BuyPriceMaxDate
				}
			case roleRefined:
				if q.City != req.SellCity || q.SellPriceMin <= 0 {
					continue
				}
				if p := float64(q.SellPriceMin); cur.Sell == 0 || p < cur.Sell {
					cur.Sell = p
					cur.SellTimestamp = q.SellPriceMinDate
				}
			}
			res.Prices[t.key] = cur
		}
	}

	logger.Info("Refine", fmt.Sprintf("Synced %s: %d ids, %d quotes, %d cells priced",
		req.Resource, len(ids), len(quotes), len(res.Prices)))
	return res, nil
}
