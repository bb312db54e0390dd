package db

import (
	"fmt"
	"strconv"

	"albion-market/internal/config"
	"albion-market/internal/logger"
)

// LoadRefineSettings reads the saved calculator settings. Missing keys keep
// the values from base.
func (d *DB) LoadRefineSettings(base config.RefineSettings) config.RefineSettings {
	cfg := base

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["resource_type"]; ok {
		cfg.ResourceType = v
	}
	if v, ok := m["return_rate"]; ok {
		cfg.ReturnRate = parseFloatOr(v, cfg.ReturnRate)
	}
	if v, ok := m["tax_rate"]; ok {
		cfg.TaxRate = parseFloatOr(v, cfg.TaxRate)
	}
	if v, ok := m["shop_fee"]; ok {
		cfg.ShopFee = parseFloatOr(v, cfg.ShopFee)
	}
	if v, ok := m["quantity"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quantity = n
		}
	}
	if v, ok := m["buy_order_city"]; ok {
		cfg.BuyOrderCity = v
	}
	if v, ok := m["sell_order_city"]; ok {
		cfg.SellOrderCity = v
	}
	if v, ok := m["server"]; ok {
		cfg.Server = v
	}
	return cfg
}

// SaveRefineSettings writes the calculator settings.
func (d *DB) SaveRefineSettings(cfg config.RefineSettings) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	pairs := map[string]string{
		"resource_type":   cfg.ResourceType,
		"return_rate":     strconv.FormatFloat(cfg.ReturnRate, 'f', -1, 64),
		"tax_rate":        strconv.FormatFloat(cfg.TaxRate, 'f', -1, 64),
		"shop_fee":        strconv.FormatFloat(cfg.ShopFee, 'f', -1, 64),
		"quantity":        strconv.Itoa(cfg.Quantity),
		"buy_order_city":  cfg.BuyOrderCity,
		"sell_order_city": cfg.SellOrderCity,
		"server":          cfg.Server,
	}
	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("DB", fmt.Sprintf("Saved refine settings (%s)", cfg.ResourceType))
	return nil
}

func parseFloatOr(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
