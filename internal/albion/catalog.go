package albion

import (
	"context"
	"errors"
	"strings"
)

// Item is one entry of the item reference list.
type Item struct {
	UniqueName string `json:"unique_name"`
	Name       string `json:"name"`
	Tier       int    `json:"tier"`
}

// rawItem is the shape of a record in the formatted items.json dump.
type rawItem struct {
	UniqueName     string            `json:"UniqueName"`
	LocalizedNames map[string]string `json:"LocalizedNames"`
	Tier           int               `json:"Tier"`
}

// FetchCatalog downloads the full item dump and reduces it to Items.
// Quest items are dropped and a missing English name falls back to the id.
func (c *Client) FetchCatalog(ctx context.Context) ([]Item, error) {
	if c.catalogURL == "" {
		return nil, errors.New("catalog URL not configured")
	}
	var raw []rawItem
	if err := c.get(ctx, c.catalogURL, &raw); err != nil {
		return nil, err
	}
	return reduceItems(raw), nil
}

func reduceItems(raw []rawItem) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		if r.UniqueName == "" || strings.Contains(r.UniqueName, "QUESTITEM") {
			continue
		}
		name := r.LocalizedNames["EN-US"]
		if name == "" {
			name = r.UniqueName
		}
		items = append(items, Item{UniqueName: r.UniqueName, Name: name, Tier: r.Tier})
	}
	return items
}
