package db

import (
	"encoding/json"
	"fmt"
	"time"

	"albion-market/internal/albion"
	"albion-market/internal/logger"
)

// ItemsKey is the static_data key holding the item catalog.
const ItemsKey = "albion_items_data"

// GetBlob returns the value stored under key and when it was written.
func (d *DB) GetBlob(key string) ([]byte, time.Time, bool) {
	var value []byte
	var updatedAt string
	err := d.sql.QueryRow("SELECT value, updated_at FROM static_data WHERE key = ?", key).Scan(&value, &updatedAt)
	if err != nil {
		return nil, time.Time{}, false
	}
	t, _ := time.Parse(time.RFC3339, updatedAt)
	return value, t, true
}

// SetBlob stores value under key. Last writer wins.
func (d *DB) SetBlob(key string, value []byte) error {
	_, err := d.sql.Exec(
		"INSERT OR REPLACE INTO static_data (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteBlob removes key. Missing keys are not an error.
func (d *DB) DeleteBlob(key string) error {
	_, err := d.sql.Exec("DELETE FROM static_data WHERE key = ?", key)
	return err
}

// LoadItems returns the persisted catalog, if any. A blob that no longer
// decodes is dropped so the next refresh rewrites it.
func (d *DB) LoadItems() ([]albion.Item, time.Time, bool) {
	raw, updatedAt, ok := d.GetBlob(ItemsKey)
	if !ok {
		return nil, time.Time{}, false
	}
	var items []albion.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("DB", fmt.Sprintf("Discarding unreadable item cache: %v", err))
		if err := d.DeleteBlob(ItemsKey); err != nil {
			logger.Error("DB", fmt.Sprintf("Delete item cache: %v", err))
		}
		return nil, time.Time{}, false
	}
	if len(items) == 0 {
		return nil, time.Time{}, false
	}
	return items, updatedAt, true
}

// SaveItems persists the catalog.
func (d *DB) SaveItems(items []albion.Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	return d.SetBlob(ItemsKey, raw)
}
