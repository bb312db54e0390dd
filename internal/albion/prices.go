package albion

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"albion-market/internal/config"
	"albion-market/internal/logger"
)

// PriceQuote mirrors one row of the price API response. Zero price fields
// mean the market has no data for that side, not that the item is free.
type PriceQuote struct {
	ItemID           string `json:"item_id"`
	City             string `json:"city"`
	Quality          int    `json:"quality"`
	SellPriceMin     int64  `json:"sell_price_min"`
	SellPriceMinDate string `json:"sell_price_min_date"`
	SellPriceMax     int64  `json:"sell_price_max"`
	SellPriceMaxDate string `json:"sell_price_max_date"`
	BuyPriceMin      int64  `json:"buy_price_min"`
	BuyPriceMinDate  string `json:"buy_price_min_date"`
	BuyPriceMax      int64  `json:"buy_price_max"`
	BuyPriceMaxDate  string `json:"buy_price_max_date"`
}

// HasSell reports whether there is a live sell listing.
func (q PriceQuote) HasSell() bool { return q.SellPriceMin > 0 }

// HasBuy reports whether there is a live buy order.
func (q PriceQuote) HasBuy() bool { return q.BuyPriceMax > 0 }

// PriceRequest selects quotes. Empty Cities/Qualities fan out to all cities
// and qualities 1-5.
type PriceRequest struct {
	Server    string
	ItemIDs   []string
	Cities    []string
	Qualities []int
}

type priceEntry struct {
	quotes    []PriceQuote
	fetchedAt time.Time
}

// PricesURL builds the request URL. Each item id and city is escaped on its
// own and the lists are joined with raw commas, which the API splits on.
func (c *Client) PricesURL(req PriceRequest) string {
	cities := req.Cities
	if len(cities) == 0 {
		cities = config.Cities
	}
	qualities := req.Qualities
	if len(qualities) == 0 {
		qualities = config.QualityIDs()
	}

	ids := make([]string, len(req.ItemIDs))
	for i, id := range req.ItemIDs {
		ids[i] = url.PathEscape(id)
	}
	locs := make([]string, len(cities))
	for i, city := range cities {
		locs[i] = url.PathEscape(city)
	}
	quals := make([]string, len(qualities))
	for i, q := range qualities {
		quals[i] = strconv.Itoa(q)
	}

	base := c.priceBase
	if base == "" {
		base = PriceHost(req.Server)
	}
	return fmt.Sprintf("%s/api/v2/stats/prices/%s?locations=%s&qualities=%s",
		base, strings.Join(ids, ","), strings.Join(locs, ","), strings.Join(quals, ","))
}

// FetchPrices fetches quotes for one or more items. Identical requests made
// within the price TTL are served from memory, and concurrent identical
// requests share one network call. When the source fails, the last good
// response for the same request is returned instead; with nothing cached
// the error wraps ErrSourceUnavailable.
func (c *Client) FetchPrices(ctx context.Context, req PriceRequest) ([]PriceQuote, error) {
	if len(req.ItemIDs) == 0 {
		return nil, nil
	}
	key := c.PricesURL(req)

	if e, ok := c.cachedPrices(key); ok && time.Since(e.fetchedAt) < c.priceTTL {
		return e.quotes, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		var quotes []PriceQuote
		if err := c.get(ctx, key, &quotes); err != nil {
			return nil, err
		}
		c.prices.Set(key, &priceEntry{quotes: quotes, fetchedAt: time.Now()}, gocache.DefaultExpiration)
		return quotes, nil
	})
	if err != nil {
		if e, ok := c.cachedPrices(key); ok {
			logger.Warn("Prices", fmt.Sprintf("Serving stale prices (%s old): %v", time.Since(e.fetchedAt).Round(time.Second), err))
			return e.quotes, nil
		}
		return nil, err
	}
	return result.([]PriceQuote), nil
}

func (c *Client) cachedPrices(key string) (*priceEntry, bool) {
	v, ok := c.prices.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*priceEntry), true
}
