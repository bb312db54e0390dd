package catalog

import (
	"strings"

	"albion-market/internal/itemid"
)

// View selects what the search page shows.
type View string

const (
	ViewPrices View = "prices"
	ViewList   View = "list"
)

// TierAll means the item carries no tier of its own.
const TierAll = "All"

// Resolution is the outcome of resolving a free-text or id-like query.
type Resolution struct {
	Query       string `json:"query"`
	View        View   `json:"view"`
	Item        *Item  `json:"item,omitempty"`
	Candidates  []Item `json:"candidates"`
	ItemName    string `json:"item_name"`
	BaseID      string `json:"base_id"`
	Tier        string `json:"tier"`        // "1".."8" or "All"
	Enchantment string `json:"enchantment"` // "0".."4"
}

// Resolve maps a query onto the catalog. An empty query yields the zero
// Resolution.
//
// An item is an exact match when its id equals the query, or equals the
// query with its enchantment stripped, so T4_AXE@2 resolves to T4_AXE with
// enchantment 2. Without an exact match, any substring hits are returned as
// a list; with no hits at all the query itself is used as the item id.
//
// The catalog is searched for both the query and its stripped form, since
// an enchanted query is not a substring of the unenchanted id.
func Resolve(query string, c *Catalog) Resolution {
	if strings.TrimSpace(query) == "" {
		return Resolution{}
	}
	results := c.Search(query)
	if base := queryBaseID(itemid.Parse(query)); !strings.EqualFold(base, query) {
		results = mergeResults(results, c.Search(base))
	}
	return ResolveIn(query, results)
}

func queryBaseID(qp itemid.Parts) string {
	if qp.Tier != "0" {
		return "T" + qp.Tier + "_" + qp.Base
	}
	return qp.Base
}

// mergeResults appends b to a, skipping ids already present, capped at MaxResults.
func mergeResults(a, b []Item) []Item {
	seen := make(map[string]bool, len(a))
	for _, it := range a {
		seen[it.UniqueName] = true
	}
	out := a
	for _, it := range b {
		if len(out) >= MaxResults {
			break
		}
		if !seen[it.UniqueName] {
			seen[it.UniqueName] = true
			out = append(out, it)
		}
	}
	return out
}

// ResolveIn is Resolve over precomputed search results.
func ResolveIn(query string, results []Item) Resolution {
	if strings.TrimSpace(query) == "" {
		return Resolution{}
	}

	qp := itemid.Parse(query)
	baseID := queryBaseID(qp)

	res := Resolution{
		Query:       query,
		Candidates:  results,
		Tier:        TierAll,
		Enchantment: "0",
	}

	for i := range results {
		it := results[i]
		if !strings.EqualFold(it.UniqueName, query) && !strings.EqualFold(it.UniqueName, baseID) {
			continue
		}
		ip := itemid.Parse(it.UniqueName)
		res.View = ViewPrices
		res.Item = &it
		res.ItemName = it.Name
		if res.ItemName == "" {
			res.ItemName = it.UniqueName
		}
		res.BaseID = ip.Base
		if ip.Tier != "0" {
			res.Tier = ip.Tier
		}
		res.Enchantment = ip.Enchant
		if qp.Enchant != "" && qp.Enchant != "0" {
			res.Enchantment = qp.Enchant
		}
		return res
	}

	if len(results) > 0 {
		res.View = ViewList
		return res
	}

	res.View = ViewPrices
	res.ItemName = query
	res.BaseID = query
	return res
}

// ItemID is the id to fetch prices for. A resolution without a tier gets
// T4 unless its base already starts with a tier letter.
func (r Resolution) ItemID() string {
	if r.BaseID == "" {
		return ""
	}
	tier := r.Tier
	if tier == "" || tier == TierAll {
		tier = "4"
	}
	id := r.BaseID
	if tier != "0" && !strings.HasPrefix(id, "T") {
		id = "T" + tier + "_" + id
	}
	return itemid.WithEnchant(id, r.Enchantment)
}
