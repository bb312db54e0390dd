package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"albion-market/internal/albion"
	"albion-market/internal/catalog"
	"albion-market/internal/config"
	"albion-market/internal/engine"
	"albion-market/internal/logger"
)

// PriceSource fetches market quotes.
type PriceSource interface {
	FetchPrices(ctx context.Context, req albion.PriceRequest) ([]albion.PriceQuote, error)
}

// SettingsStore persists the refine calculator settings.
type SettingsStore interface {
	SaveRefineSettings(cfg config.RefineSettings) error
}

// Server is the HTTP API over the item catalog, the price client and the
// refine calculator.
type Server struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	prices   PriceSource
	table    *engine.PriceTable
	poller   *engine.Poller
	store    SettingsStore
	started  time.Time
	syncWait time.Duration
}

// NewServer creates a Server. store and poller may be nil.
func NewServer(cfg *config.Config, cat *catalog.Catalog, prices PriceSource, table *engine.PriceTable, poller *engine.Poller, store SettingsStore) *Server {
	return &Server{
		cfg:      cfg,
		catalog:  cat,
		prices:   prices,
		table:    table,
		poller:   poller,
		store:    store,
		started:  time.Now(),
		syncWait: cfg.HTTPTimeout,
	}
}

// Handler returns the HTTP handler with all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/meta", s.handleMeta)
	mux.HandleFunc("GET /api/items", s.handleItems)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/prices/{itemID}", s.handlePrices)
	mux.HandleFunc("GET /api/refine", s.handleGetRefine)
	mux.HandleFunc("PUT /api/refine/settings", s.handleSetRefineSettings)
	mux.HandleFunc("PUT /api/refine/prices/{tierKey}", s.handleSetRefinePrice)
	mux.HandleFunc("POST /api/refine/sync", s.handleRefineSync)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := s.table.Settings()
	result := map[string]interface{}{
		"catalog_items":  s.catalog.Len(),
		"refine_item":    settings.ResourceType,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if at := s.catalog.FetchedAt(); !at.IsZero() {
		result["catalog_updated"] = at.Unix()
	}
	if snap := s.table.Snapshot(); !snap.LastSync.IsZero() {
		result["refine_last_sync"] = snap.LastSync.Unix()
	}
	writeJSON(w, result)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	type resource struct {
		ID          engine.ResourceType `json:"id"`
		RawName     string              `json:"raw_name"`
		RefinedName string              `json:"refined_name"`
	}
	resources := make([]resource, 0, len(engine.ResourceTypes))
	for _, rt := range engine.ResourceTypes {
		resources = append(resources, resource{rt, rt.DisplayName(false), rt.DisplayName(true)})
	}
	writeJSON(w, map[string]interface{}{
		"cities":    config.Cities,
		"qualities": config.Qualities,
		"servers":   albion.Servers(),
		"resources": resources,
	})
}

// handleItems serves the whole catalog. The body only changes when the
// catalog is refreshed, so shared caches may keep it for a day.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	if s.catalog.Len() == 0 {
		if err := s.catalog.Refresh(r.Context()); err != nil && s.catalog.Len() == 0 {
			logger.Error("API", fmt.Sprintf("Item catalog unavailable: %v", err))
			writeError(w, 500, "Failed to fetch items")
			return
		}
	}
	w.Header().Set("Cache-Control", "public, s-maxage=86400, stale-while-revalidate=43200")
	writeJSON(w, s.catalog.Items())
}

type searchResponse struct {
	catalog.Resolution
	ItemID string `json:"item_id"`
}

// handleSearch resolves q against the catalog. An optional tier narrows the
// candidate list.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, 400, "q is required")
		return
	}
	res := catalog.Resolve(q, s.catalog)
	if v := r.URL.Query().Get("tier"); v != "" {
		tier, err := strconv.Atoi(v)
		if err != nil || tier < 1 || tier > 8 {
			writeError(w, 400, fmt.Sprintf("invalid tier %q", v))
			return
		}
		res.Candidates = catalog.FilterByTier(res.Candidates, tier)
	}
	writeJSON(w, searchResponse{Resolution: res, ItemID: res.ItemID()})
}

type pricesResponse struct {
	ItemID    string            `json:"item_id"`
	Server    string            `json:"server"`
	Sort      engine.PriceSort  `json:"sort"`
	Available bool              `json:"available"`
	Error     string            `json:"error,omitempty"`
	Rows      []engine.PriceRow `json:"rows"`
}

// handlePrices returns a city x quality table for one item. A failing price
// source is reported in the body with available=false, not as an HTTP error.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimSpace(r.PathValue("itemID"))
	if itemID == "" {
		writeError(w, 400, "item id is required")
		return
	}
	q := r.URL.Query()

	cities := config.Cities
	if v := q.Get("locations"); v != "" {
		cities = splitList(v)
	}
	qualities := config.QualityIDs()
	if v := q.Get("qualities"); v != "" {
		parsed, err := parseQualities(v)
		if err != nil {
			writeError(w, 400, err.Error())
			return
		}
		qualities = parsed
	}
	server := q.Get("server")
	if server == "" {
		server = s.table.Settings().Server
	}
	if !albion.KnownServer(server) {
		writeError(w, 400, "unknown server")
		return
	}
	sortBy := engine.ParsePriceSort(q.Get("sort"))

	resp := pricesResponse{ItemID: itemID, Server: server, Sort: sortBy, Available: true}
	quotes, err := s.prices.FetchPrices(r.Context(), albion.PriceRequest{
		Server:    server,
		ItemIDs:   []string{itemID},
		Cities:    cities,
		Qualities: qualities,
	})
	if err != nil {
		logger.Warn("API", fmt.Sprintf("Prices for %s unavailable: %v", itemID, err))
		resp.Available = false
		resp.Error = "price data unavailable"
	}
	resp.Rows = engine.ArrangePrices(quotes, cities, qualities, sortBy)
	writeJSON(w, resp)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseQualities(v string) ([]int, error) {
	var out []int
	for _, part := range splitList(v) {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 5 {
			return nil, fmt.Errorf("invalid quality %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Server) handleGetRefine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.table.Snapshot())
}

func (s *Server) handleSetRefineSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.table.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, 400, "invalid json")
		return
	}

	if settings.ReturnRate < 0 {
		settings.ReturnRate = 0
	} else if settings.ReturnRate > 100 {
		settings.ReturnRate = 100
	}
	if settings.TaxRate < 0 {
		settings.TaxRate = 0
	} else if settings.TaxRate > 100 {
		settings.TaxRate = 100
	}
	if settings.ShopFee < 0 {
		settings.ShopFee = 0
	}
	if settings.Quantity < 0 {
		settings.Quantity = 0
	}
	if !knownCity(settings.BuyOrderCity) || !knownCity(settings.SellOrderCity) {
		writeError(w, 400, "unknown city")
		return
	}
	if !albion.KnownServer(settings.Server) {
		writeError(w, 400, "unknown server")
		return
	}

	reset, err := s.table.UpdateSettings(settings)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if s.store != nil {
		if err := s.store.SaveRefineSettings(s.table.Settings()); err != nil {
			logger.Error("API", fmt.Sprintf("Save refine settings: %v", err))
		}
	}
	if reset && s.poller != nil {
		go s.syncInBackground()
	}
	writeJSON(w, s.table.Snapshot())
}

func knownCity(name string) bool {
	for _, c := range config.Cities {
		if c == name {
			return true
		}
	}
	return false
}

func (s *Server) syncInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), s.syncWait)
	defer cancel()
	if _, _, err := s.poller.SyncNow(ctx); err != nil {
		logger.Error("API", fmt.Sprintf("Refine sync: %v", err))
	}
}

type priceEdit struct {
	Side  string  `json:"side"`
	Price float64 `json:"price"`
}

func (s *Server) handleSetRefinePrice(w http.ResponseWriter, r *http.Request) {
	key, err := engine.ParseTierKey(r.PathValue("tierKey"))
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var edit priceEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if err := s.table.UpdatePrice(key, edit.Side, edit.Price); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, s.table.Snapshot())
}

func (s *Server) handleRefineSync(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		writeError(w, 503, "price sync is not configured")
		return
	}
	res, applied, err := s.poller.SyncNow(r.Context())
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	result := map[string]interface{}{
		"applied":      applied,
		"cells_priced": len(res.Prices),
		"completed_at": res.CompletedAt,
	}
	if res.Err != nil {
		result["error"] = "price data unavailable"
	}
	writeJSON(w, result)
}
