package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"albion-market/internal/logger"
)

// Poller keeps a PriceTable fed with market prices for its current settings.
type Poller struct {
	syncer  *Synchronizer
	table   *PriceTable
	timeout time.Duration
}

// NewPoller creates a poller. timeout bounds each scheduled sync.
func NewPoller(syncer *Synchronizer, table *PriceTable, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{syncer: syncer, table: table, timeout: timeout}
}

// SyncNow synchronizes the table's current resource and cities and applies
// the result. A result that lost the race to a newer one is dropped; the
// bool reports whether it was applied.
func (p *Poller) SyncNow(ctx context.Context) (SyncResult, bool, error) {
	req, err := p.table.SyncRequest()
	if err != nil {
		return SyncResult{}, false, err
	}
	res, err := p.syncer.Sync(ctx, req)
	if err != nil {
		return res, false, err
	}
	applied := p.table.ApplySync(res)
	if !applied && res.Err == nil {
		logger.Info("Refine", fmt.Sprintf("Discarded out-of-date sync for %s (%s -> %s)", res.Resource, res.BuyCity, res.SellCity))
	}
	return res, applied, nil
}

// Schedule registers a periodic sync on c using a cron spec such as "@every 60s".
func (p *Poller) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if _, _, err := p.SyncNow(ctx); err != nil {
			logger.Error("Refine", fmt.Sprintf("Scheduled sync: %v", err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule price poll %q: %w", spec, err)
	}
	return id, nil
}
