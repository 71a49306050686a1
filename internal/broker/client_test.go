package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"infinite-buy/internal/config"
)

func testConfig(t *testing.T, baseURL string) config.BrokerConfig {
	t.Helper()
	return config.BrokerConfig{
		AppKey:        "test-key",
		AppSecret:     "test-secret",
		AccountNumber: "12345678",
		AccountCode:   "01",
		BaseURL:       baseURL,
		ExchangeCode:  "AMS",
		TokenPath:     filepath.Join(t.TempDir(), "token.json"),
		Retry: config.RetryConfig{
			MaxAttempts: 2,
			MinDelay:    time.Millisecond,
			MaxDelay:    10 * time.Millisecond,
		},
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func tokenHandler(hits *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*hits++
		writeJSON(w, map[string]interface{}{
			"access_token": "test-token",
			"expires_in":   86400,
		})
	}
}

func TestPlaceOrder_HashKeyAndRoute(t *testing.T) {
	var tokenHits int
	var gotBody []byte
	var gotHashKey, gotTrID string

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenHits))
	mux.HandleFunc("/uapi/overseas-stock/v1/trading/order", func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHashKey = r.Header.Get("hashkey")
		gotTrID = r.Header.Get("tr_id")
		writeJSON(w, map[string]interface{}{
			"rt_cd":  "0",
			"msg1":   "정상처리 되었습니다",
			"output": map[string]interface{}{"ODNO": "0001234567"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testConfig(t, srv.URL), nil)
	result, err := c.PlaceOrder(context.Background(), OrderLOCBuy, "SOXL", 14, 99.5)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	if tokenHits != 1 {
		t.Errorf("token endpoint hits = %d, want 1", tokenHits)
	}
	if gotTrID != "JTTT1002U" {
		t.Errorf("tr_id = %q, want JTTT1002U", gotTrID)
	}

	// hashkey 必须等于报文的SHA-256摘要
	sum := sha256.Sum256(gotBody)
	if gotHashKey != hex.EncodeToString(sum[:]) {
		t.Errorf("hashkey = %q does not match body digest", gotHashKey)
	}

	var body map[string]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("unmarshal order body: %v", err)
	}
	if body["SLL_BUY_DVSN_CD"] != "B" || body["ORD_DVSN"] != "34" {
		t.Errorf("order route fields = %v", body)
	}
	if body["ORD_QTY"] != "14" || body["OVRS_ORD_UNPR"] != "99.50" {
		t.Errorf("order qty/price = %v", body)
	}
	if body["PDNO"] != "SOXL" || body["CANO"] != "12345678" {
		t.Errorf("order account fields = %v", body)
	}
}

func TestPlaceOrder_MOCSellSendsZeroPrice(t *testing.T) {
	var tokenHits int
	var gotBody []byte
	var gotTrID string

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenHits))
	mux.HandleFunc("/uapi/overseas-stock/v1/trading/order", func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotTrID = r.Header.Get("tr_id")
		writeJSON(w, map[string]interface{}{"rt_cd": "0"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testConfig(t, srv.URL), nil)
	if _, err := c.PlaceOrder(context.Background(), OrderMOCSell, "SOXL", 14, 0); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if gotTrID != "JTTT1006U" {
		t.Errorf("tr_id = %q, want JTTT1006U", gotTrID)
	}
	var body map[string]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("unmarshal order body: %v", err)
	}
	if body["ORD_DVSN"] != "33" || body["SLL_BUY_DVSN_CD"] != "S" {
		t.Errorf("MOC route fields = %v", body)
	}
	if body["OVRS_ORD_UNPR"] != "0" {
		t.Errorf("MOC price = %q, want 0", body["OVRS_ORD_UNPR"])
	}
}

func TestPlaceOrder_RejectedReturnsResultNotError(t *testing.T) {
	var tokenHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenHits))
	mux.HandleFunc("/uapi/overseas-stock/v1/trading/order", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"rt_cd": "1",
			"msg1":  "주문가능금액을 초과했습니다",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testConfig(t, srv.URL), nil)
	result, err := c.PlaceOrder(context.Background(), OrderLOCSell, "SOXL", 14, 100.5)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if result.Success {
		t.Error("expected rejected order, got success")
	}
	if result.Message == "" {
		t.Error("expected rejection message")
	}
}

func TestGetDailyPrices_PagesBackwards(t *testing.T) {
	var tokenHits int
	var bymds []string

	page1 := []map[string]string{
		{"xymd": "20240105", "open": "101", "high": "102", "low": "100", "clos": "101.5", "tvol": "1500"},
		{"xymd": "20240104", "open": "100", "high": "101", "low": "99", "clos": "100.5", "tvol": "1200"},
	}
	page2 := []map[string]string{
		{"xymd": "20240103", "open": "99", "high": "100", "low": "98", "clos": "99.5", "tvol": "1100"},
		{"xymd": "20240102", "open": "98", "high": "99", "low": "97", "clos": "98.5", "tvol": "1000"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenHits))
	mux.HandleFunc("/uapi/overseas-price/v1/quotations/dailyprice", func(w http.ResponseWriter, r *http.Request) {
		bymd := r.URL.Query().Get("BYMD")
		bymds = append(bymds, bymd)
		out := page2
		if bymd >= "20240104" {
			out = page1
		}
		writeJSON(w, map[string]interface{}{"rt_cd": "0", "output2": out})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testConfig(t, srv.URL), nil)
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	series, err := c.GetDailyPrices(context.Background(), "SOXL", start, end)
	if err != nil {
		t.Fatalf("GetDailyPrices: %v", err)
	}

	if len(bymds) != 2 {
		t.Fatalf("page requests = %v, want 2 pages", bymds)
	}
	// 第二页从第一页最旧日期的前一天继续向前翻
	if bymds[0] != "20240105" || bymds[1] != "20240103" {
		t.Errorf("page cursors = %v", bymds)
	}

	if len(series) != 4 {
		t.Fatalf("bars = %d, want 4", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].Date.Before(series[i].Date) {
			t.Errorf("series not ascending at %d: %v / %v", i, series[i-1].Date, series[i].Date)
		}
	}
	if series[0].Close != 98.5 || series[3].Close != 101.5 {
		t.Errorf("boundary closes = %f / %f", series[0].Close, series[3].Close)
	}
	if series[3].Volume != 1500 {
		t.Errorf("volume = %d, want 1500", series[3].Volume)
	}
}

func TestGetDailyPrices_FiltersOutsideRange(t *testing.T) {
	var tokenHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenHits))
	mux.HandleFunc("/uapi/overseas-price/v1/quotations/dailyprice", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"rt_cd": "0",
			"output2": []map[string]string{
				{"xymd": "20240110", "open": "1", "high": "1", "low": "1", "clos": "1", "tvol": "1"},
				{"xymd": "20240104", "open": "100", "high": "101", "low": "99", "clos": "100.5", "tvol": "1200"},
				{"xymd": "20231229", "open": "1", "high": "1", "low": "1", "clos": "1", "tvol": "1"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testConfig(t, srv.URL), nil)
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	series, err := c.GetDailyPrices(context.Background(), "SOXL", start, end)
	if err != nil {
		t.Fatalf("GetDailyPrices: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("bars = %d, want only in-range bar", len(series))
	}
	if series[0].Close != 100.5 {
		t.Errorf("close = %f, want 100.5", series[0].Close)
	}
}

func TestEnsureToken_UsesFileCache(t *testing.T) {
	var tokenHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenHits))
	mux.HandleFunc("/uapi/overseas-price/v1/quotations/price", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("authorization"); got != "Bearer cached-token" {
			t.Errorf("authorization = %q, want cached token", got)
		}
		writeJSON(w, map[string]interface{}{"rt_cd": "0", "output": map[string]interface{}{"last": "30.5"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)

	// 预置未过期的令牌文件，不应触发重新签发
	cached, _ := json.Marshal(accessToken{
		Token:     "cached-token",
		ExpiresAt: time.Now().Add(time.Hour),
		AppKey:    cfg.AppKey,
	})
	if err := os.WriteFile(cfg.TokenPath, cached, 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	c := NewClient(cfg, nil)
	if _, err := c.GetCurrentPrice(context.Background(), "SOXL"); err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if tokenHits != 0 {
		t.Errorf("token endpoint hits = %d, want 0", tokenHits)
	}
}

func TestClassifyError(t *testing.T) {
	backoff := 5 * time.Second

	if wait, retry := classifyError(ErrRateLimited, backoff); !retry || wait != time.Minute {
		t.Errorf("rate limit: wait=%v retry=%v, want 1m/true", wait, retry)
	}
	if _, retry := classifyError(context.Canceled, backoff); retry {
		t.Error("context.Canceled should not be retryable")
	}
	if _, retry := classifyError(context.DeadlineExceeded, backoff); retry {
		t.Error("context.DeadlineExceeded should not be retryable")
	}
	netErr := &url.Error{Op: "Get", URL: "http://example.com", Err: errors.New("connection refused")}
	if wait, retry := classifyError(netErr, backoff); !retry || wait != backoff {
		t.Errorf("url error: wait=%v retry=%v, want backoff/true", wait, retry)
	}
	if _, retry := classifyError(errors.New("plain error"), backoff); retry {
		t.Error("plain error should not be retryable")
	}
}
