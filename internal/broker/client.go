package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"infinite-buy/internal/config"
	"infinite-buy/internal/market"
)

const (
	trDailyPrice   = "HHDFS76240000"
	trCurrentPrice = "HHDFS00000300"
	trBalance      = "JTTT3012R"
	trTodayOrders  = "JTTT3001R"

	apiDateLayout = "20060102"
	// pageInterval 为分页拉取之间的间隔，规避接口调用频率限制。
	pageInterval = 100 * time.Millisecond
)

// Client 负责与券商海外股票接口交互并实现重试机制。
type Client struct {
	cfg        config.BrokerConfig
	logger     *zap.Logger
	httpClient *http.Client

	tokenMu sync.Mutex
	token   accessToken
}

// NewClient 构建券商接口客户端。令牌在首次调用时按需签发。
func NewClient(cfg config.BrokerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type dailyPriceResponse struct {
	RtCd    string `json:"rt_cd"`
	Msg1    string `json:"msg1"`
	Output2 []struct {
		Xymd string `json:"xymd"`
		Open string `json:"open"`
		High string `json:"high"`
		Low  string `json:"low"`
		Clos string `json:"clos"`
		Tvol string `json:"tvol"`
	} `json:"output2"`
}

// GetDailyPrices 拉取闭区间内的日线行情，按日期升序返回。
// 接口按单页从新到旧返回，内部自动向前翻页直至覆盖起始日。
func (c *Client) GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) (market.Series, error) {
	startStr := start.Format(apiDateLayout)
	endStr := end.Format(apiDateLayout)

	var series market.Series
	currentEnd := endStr

	for currentEnd >= startStr {
		params := url.Values{}
		params.Set("AUTH", "")
		params.Set("EXCD", c.cfg.ExchangeCode)
		params.Set("SYMB", symbol)
		params.Set("GUBN", "0")
		params.Set("BYMD", currentEnd)
		params.Set("MODP", "0")

		var payload dailyPriceResponse
		err := c.callWithRetry(ctx, "daily_price", func() error {
			return c.doGet(ctx, "/uapi/overseas-price/v1/quotations/dailyprice", trDailyPrice, params, &payload)
		})
		if err != nil {
			return nil, err
		}
		if payload.RtCd != "0" {
			return nil, apiError("dailyprice", payload.Msg1)
		}
		if len(payload.Output2) == 0 {
			break
		}

		for _, item := range payload.Output2 {
			if item.Xymd < startStr || item.Xymd > endStr {
				continue
			}
			bar, err := parseDailyBar(item.Xymd, item.Open, item.High, item.Low, item.Clos, item.Tvol)
			if err != nil {
				return nil, err
			}
			series = append(series, bar)
		}

		oldest := payload.Output2[len(payload.Output2)-1].Xymd
		if oldest <= startStr {
			break
		}
		oldestDate, err := time.Parse(apiDateLayout, oldest)
		if err != nil {
			return nil, fmt.Errorf("broker: 解析分页日期 %q 失败: %w", oldest, err)
		}
		currentEnd = oldestDate.AddDate(0, 0, -1).Format(apiDateLayout)

		if err := sleepCtx(ctx, pageInterval); err != nil {
			return nil, err
		}
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	c.logger.Info("日线行情拉取完成",
		zap.String("symbol", symbol),
		zap.Int("bars", len(series)),
	)
	return series, nil
}

func parseDailyBar(dateStr, open, high, low, clos, tvol string) (market.PriceBar, error) {
	date, err := time.Parse(apiDateLayout, dateStr)
	if err != nil {
		return market.PriceBar{}, fmt.Errorf("broker: 解析行情日期 %q 失败: %w", dateStr, err)
	}

	var bar market.PriceBar
	bar.Date = date
	fields := []struct {
		raw string
		dst *float64
	}{
		{open, &bar.Open},
		{high, &bar.High},
		{low, &bar.Low},
		{clos, &bar.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return market.PriceBar{}, fmt.Errorf("broker: 解析行情价格 %q 失败: %w", f.raw, err)
		}
		*f.dst = v
	}
	if tvol != "" {
		if v, err := strconv.ParseInt(tvol, 10, 64); err == nil {
			bar.Volume = v
		}
	}
	return bar, nil
}

type currentPriceResponse struct {
	RtCd   string                 `json:"rt_cd"`
	Msg1   string                 `json:"msg1"`
	Output map[string]interface{} `json:"output"`
}

// GetCurrentPrice 查询标的当前报价，返回接口原始字段。
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("AUTH", "")
	params.Set("EXCD", c.cfg.ExchangeCode)
	params.Set("SYMB", symbol)

	var payload currentPriceResponse
	err := c.callWithRetry(ctx, "current_price", func() error {
		return c.doGet(ctx, "/uapi/overseas-price/v1/quotations/price", trCurrentPrice, params, &payload)
	})
	if err != nil {
		return nil, err
	}
	if payload.RtCd != "0" {
		return nil, apiError("price", payload.Msg1)
	}
	return payload.Output, nil
}

type balanceResponse struct {
	RtCd    string                 `json:"rt_cd"`
	Msg1    string                 `json:"msg1"`
	Output2 map[string]interface{} `json:"output2"`
}

// GetBalance 查询海外账户余额概要。
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	params := url.Values{}
	params.Set("CANO", c.cfg.AccountNumber)
	params.Set("ACNT_PRDT_CD", c.cfg.AccountCode)
	params.Set("OVRS_EXCG_CD", "NASD")
	params.Set("TR_CRCY_CD", "USD")
	params.Set("CTX_AREA_FK200", "")
	params.Set("CTX_AREA_NK200", "")

	var payload balanceResponse
	err := c.callWithRetry(ctx, "balance", func() error {
		return c.doGet(ctx, "/uapi/overseas-stock/v1/trading/inquire-balance", trBalance, params, &payload)
	})
	if err != nil {
		return nil, err
	}
	if payload.RtCd != "0" {
		return nil, apiError("inquire-balance", payload.Msg1)
	}
	return Balance(payload.Output2), nil
}

type todayOrdersResponse struct {
	RtCd   string                   `json:"rt_cd"`
	Msg1   string                   `json:"msg1"`
	Output []map[string]interface{} `json:"output"`
}

// GetTodayOrders 查询当日全部委托记录。
func (c *Client) GetTodayOrders(ctx context.Context) ([]map[string]interface{}, error) {
	today := time.Now().Format(apiDateLayout)

	params := url.Values{}
	params.Set("CANO", c.cfg.AccountNumber)
	params.Set("ACNT_PRDT_CD", c.cfg.AccountCode)
	params.Set("PDNO", "%")
	params.Set("ORD_STRT_DT", today)
	params.Set("ORD_END_DT", today)
	params.Set("SLL_BUY_DVSN", "00")
	params.Set("CCLD_NCCS_DVSN", "00")
	params.Set("CTX_AREA_FK200", "")
	params.Set("CTX_AREA_NK200", "")

	var payload todayOrdersResponse
	err := c.callWithRetry(ctx, "today_orders", func() error {
		return c.doGet(ctx, "/uapi/overseas-stock/v1/trading/inquire-ccnl", trTodayOrders, params, &payload)
	})
	if err != nil {
		return nil, err
	}
	if payload.RtCd != "0" {
		return nil, apiError("inquire-ccnl", payload.Msg1)
	}
	return payload.Output, nil
}

func (c *Client) doGet(ctx context.Context, path, trID string, params url.Values, out interface{}) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("broker: 构造请求失败: %w", err)
	}
	c.setAuthHeaders(req, trID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker: 接口 %s 返回状态码 %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("broker: 解析接口 %s 响应失败: %w", path, err)
	}
	return nil
}

func (c *Client) setAuthHeaders(req *http.Request, trID string) {
	req.Header.Set("content-type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+c.token.Token)
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", trID)
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("券商接口重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		wait, retry := classifyError(err, delay)
		if !retry || attempt >= maxAttempts {
			c.logger.Error("券商接口调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(err),
			)
			return err
		}
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("券商接口调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// classifyError 判定错误是否可重试，并给出本次等待时长。
// 限流错误固定等待1分钟，网络错误按指数退避。
func classifyError(err error, backoff time.Duration) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if errors.Is(err, ErrRateLimited) {
		return time.Minute, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return backoff, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return backoff, true
	}

	return 0, false
}
