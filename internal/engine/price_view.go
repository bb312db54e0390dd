package engine

import (
	"sort"

	"albion-market/internal/albion"
)

// PriceSort orders rows of a price view.
type PriceSort string

const (
	SortSellLow  PriceSort = "sell_low"
	SortSellHigh PriceSort = "sell_high"
	SortBuyHigh  PriceSort = "buy_high"
	SortBuyLow   PriceSort = "buy_low"
)

// ParsePriceSort falls back to SortSellLow for unknown values.
func ParsePriceSort(s string) PriceSort {
	switch PriceSort(s) {
	case SortSellHigh, SortBuyHigh, SortBuyLow:
		return PriceSort(s)
	}
	return SortSellLow
}

// PriceRow is one city/quality line of the search page price table.
type PriceRow struct {
	City         string `json:"city"`
	Quality      int    `json:"quality"`
	SellPriceMin int64  `json:"sell_price_min"`
	SellDate     string `json:"sell_date,omitempty"`
	BuyPriceMax  int64  `json:"buy_price_max"`
	BuyDate      string `json:"buy_date,omitempty"`
	HasData      bool   `json:"has_data"`
}

// ArrangePrices lays quotes out as one row per requested city and quality
// present in the data. Combinations the source returned nothing for are
// left out. Rows are ordered by sortBy with zero prices always last; ties
// keep city then quality order.
func ArrangePrices(quotes []albion.PriceQuote, cities []string, qualities []int, sortBy PriceSort) []PriceRow {
	type cell struct {
		city    string
		quality int
	}
	byCell := make(map[cell]albion.PriceQuote, len(quotes))
	for _, q := range quotes {
		byCell[cell{q.City, q.Quality}] = q
	}

	rows := make([]PriceRow, 0, len(quotes))
	for _, city := range cities {
		for _, quality := range qualities {
			q, ok := byCell[cell{city, quality}]
			if !ok {
				continue
			}
			rows = append(rows, PriceRow{
				City:         city,
				Quality:      quality,
				SellPriceMin: q.SellPriceMin,
				SellDate:     q.SellPriceMinDate,
				BuyPriceMax:  q.BuyPriceMax,
				BuyDate:      q.BuyPriceMaxDate,
				HasData:      q.HasSell() || q.HasBuy(),
			})
		}
	}

	value := func(r PriceRow) int64 {
		if sortBy == SortBuyHigh || sortBy == SortBuyLow {
			return r.BuyPriceMax
		}
		return r.SellPriceMin
	}
	descending := sortBy == SortSellHigh || sortBy == SortBuyHigh

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := value(rows[i]), value(rows[j])
		if a == 0 || b == 0 {
			return a != 0 && b == 0
		}
		if descending {
			return a > b
		}
		return a < b
	})
	return rows
}
