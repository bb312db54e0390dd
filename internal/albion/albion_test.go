package albion

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestPriceQuote_UnmarshalJSON(t *testing.T) {
	raw := `{"item_id":"T4_PLANKS","city":"Lymhurst","quality":1,"sell_price_min":120,"sell_price_min_date":"2025-01-15T10:00:00","sell_price_max":150,"sell_price_max_date":"2025-01-15T10:00:00","buy_price_min":80,"buy_price_min_date":"2025-01-15T09:00:00","buy_price_max":100,"buy_price_max_date":"2025-01-15T09:30:00"}`
	var q PriceQuote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if q.ItemID != "T4_PLANKS" || q.City != "Lymhurst" || q.Quality != 1 {
		t.Errorf("PriceQuote = %+v", q)
	}
	if q.SellPriceMin != 120 || q.BuyPriceMax != 100 || q.BuyPriceMaxDate != "2025-01-15T09:30:00" {
		t.Errorf("prices = %+v", q)
	}
	if !q.HasSell() || !q.HasBuy() {
		t.Error("HasSell/HasBuy want true")
	}
	if (PriceQuote{}).HasSell() || (PriceQuote{}).HasBuy() {
		t.Error("zero quote must report no data")
	}
}

func TestPriceHost(t *testing.T) {
	if got := PriceHost("europe"); got != "https://europe.albion-online-data.com" {
		t.Errorf("PriceHost(europe) = %q", got)
	}
	if got := PriceHost("mars"); got != "https://west.albion-online-data.com" {
		t.Errorf("PriceHost(unknown) = %q, want west", got)
	}
	for _, s := range Servers() {
		if !KnownServer(s) {
			t.Errorf("KnownServer(%q) = false", s)
		}
	}
	if KnownServer("mars") {
		t.Error("KnownServer(mars) = true")
	}
}

func TestPricesURL_RawCommasAndEscapedCities(t *testing.T) {
	c := NewClient(Options{})
	got := c.PricesURL(PriceRequest{
		Server:    "east",
		ItemIDs:   []string{"T4_WOOD_LEVEL1@1", "T4_PLANKS"},
		Cities:    []string{"Fort Sterling", "Lymhurst"},
		Qualities: []int{1},
	})
	want := "https://east.albion-online-data.com/api/v2/stats/prices/T4_WOOD_LEVEL1@1,T4_PLANKS?locations=Fort%20Sterling,Lymhurst&qualities=1"
	if got != want {
		t.Errorf("PricesURL =\n %s\nwant\n %s", got, want)
	}
}

func TestPricesURL_EscapesItemIDs(t *testing.T) {
	c := NewClient(Options{PriceBaseURL: "http://x"})
	got := c.PricesURL(PriceRequest{
		ItemIDs: []string{"T4_AXE?locations=Caerleon&x=", "T4 BAG#1"},
		Cities:  []string{"Fort Sterling"},
	})
	want := "http://x/api/v2/stats/prices/T4_AXE%3Flocations=Caerleon&x=,T4%20BAG%231?locations=Fort%20Sterling&qualities=1,2,3,4,5"
	if got != want {
		t.Errorf("PricesURL =\n %s\nwant\n %s", got, want)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	if q := u.Query(); q.Get("locations") != "Fort Sterling" || len(q["locations"]) != 1 {
		t.Errorf("locations = %v", q["locations"])
	}
}

func TestPricesURL_DefaultFanOut(t *testing.T) {
	c := NewClient(Options{PriceBaseURL: "http://x"})
	got := c.PricesURL(PriceRequest{ItemIDs: []string{"T4_BAG"}})
	if !strings.HasSuffix(got, "?locations=Lymhurst,Bridgewatch,Martlock,Thetford,Fort%20Sterling,Caerleon,Brecilien&qualities=1,2,3,4,5") {
		t.Errorf("PricesURL default fan-out = %s", got)
	}
}

func TestFetchPrices_CachesWithinTTL(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`[{"item_id":"T4_BAG","city":"Martlock","quality":1,"sell_price_min":500}]`))
	}))
	defer ts.Close()

	c := NewClient(Options{PriceBaseURL: ts.URL, RequestsPerSec: 1000})
	req := PriceRequest{ItemIDs: []string{"T4_BAG"}, Cities: []string{"Martlock"}}
	for i := 0; i < 3; i++ {
		quotes, err := c.FetchPrices(context.Background(), req)
		if err != nil {
			t.Fatalf("FetchPrices: %v", err)
		}
		if len(quotes) != 1 || quotes[0].SellPriceMin != 500 {
			t.Fatalf("quotes = %+v", quotes)
		}
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

func TestFetchPrices_StaleFallbackOnFailure(t *testing.T) {
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"item_id":"T4_BAG","city":"Martlock","quality":1,"buy_price_max":42}]`))
	}))
	defer ts.Close()

	c := NewClient(Options{PriceBaseURL: ts.URL, PriceTTL: time.Nanosecond, RequestsPerSec: 1000})
	req := PriceRequest{ItemIDs: []string{"T4_BAG"}}
	if _, err := c.FetchPrices(context.Background(), req); err != nil {
		t.Fatalf("first FetchPrices: %v", err)
	}

	fail.Store(true)
	quotes, err := c.FetchPrices(context.Background(), req)
	if err != nil {
		t.Fatalf("stale fallback returned error: %v", err)
	}
	if len(quotes) != 1 || quotes[0].BuyPriceMax != 42 {
		t.Errorf("stale quotes = %+v", quotes)
	}
}

func TestFetchPrices_CacheEntriesExpire(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := NewClient(Options{PriceBaseURL: ts.URL, PriceTTL: time.Minute, RequestsPerSec: 1000})
	req := PriceRequest{ItemIDs: []string{"T4_BAG"}}
	if _, err := c.FetchPrices(context.Background(), req); err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	_, exp, ok := c.prices.GetWithExpiration(c.PricesURL(req))
	if !ok {
		t.Fatal("response not cached")
	}
	if exp.IsZero() {
		t.Fatal("cached response never expires")
	}
	if left := time.Until(exp); left <= 9*time.Minute || left > 10*time.Minute {
		t.Errorf("retention = %v, want about 10m", left)
	}
}

func TestFetchPrices_ErrorsWithoutCache(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(Options{PriceBaseURL: ts.URL, RequestsPerSec: 1000})
	_, err := c.FetchPrices(context.Background(), PriceRequest{ItemIDs: []string{"T4_BAG"}})
	if !errors.Is(err, ErrThrottled) {
		t.Errorf("err = %v, want ErrThrottled", err)
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want to wrap ErrSourceUnavailable", err)
	}
}

func TestFetchPrices_NoIDsNoRequest(t *testing.T) {
	c := NewClient(Options{PriceBaseURL: "http://127.0.0.1:1"})
	quotes, err := c.FetchPrices(context.Background(), PriceRequest{})
	if err != nil || quotes != nil {
		t.Errorf("FetchPrices(empty) = %v, %v", quotes, err)
	}
}

func TestFetchCatalog_BrotliAndFiltering(t *testing.T) {
	body := `[
		{"UniqueName":"T4_BAG","LocalizedNames":{"EN-US":"Adept's Bag"},"Tier":4},
		{"UniqueName":"QUESTITEM_TOKEN","LocalizedNames":{"EN-US":"Token"},"Tier":0},
		{"UniqueName":"T5_PLANKS","Tier":5},
		{"UniqueName":"","Tier":1}
	]`
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte(body))
	bw.Close()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer ts.Close()

	c := NewClient(Options{CatalogURL: ts.URL, RequestsPerSec: 1000})
	items, err := c.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2: %+v", len(items), items)
	}
	if items[0] != (Item{UniqueName: "T4_BAG", Name: "Adept's Bag", Tier: 4}) {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Name != "T5_PLANKS" {
		t.Errorf("missing name should fall back to id, got %q", items[1].Name)
	}
}

func TestFetchCatalog_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte(`[{"UniqueName":"T4_BAG","LocalizedNames":{"EN-US":"Adept's Bag"},"Tier":4}]`))
	gw.Close()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer ts.Close()

	c := NewClient(Options{CatalogURL: ts.URL, RequestsPerSec: 1000})
	items, err := c.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Adept's Bag" {
		t.Errorf("items = %+v", items)
	}
}

func TestFetchCatalog_NotConfigured(t *testing.T) {
	c := NewClient(Options{})
	if _, err := c.FetchCatalog(context.Background()); err == nil {
		t.Error("expected error without catalog URL")
	}
}
