package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// accessToken 为持久化的访问令牌。有效期按接口返回值提前1小时截断，
// 避免在任务执行中途过期。
type accessToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	AppKey    string    `json:"app_key"`
}

func (t accessToken) valid(appKey string) bool {
	return t.Token != "" && t.AppKey == appKey && time.Now().Before(t.ExpiresAt)
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// ensureToken 保证当前持有有效令牌：内存有效则直接返回，
// 其次尝试令牌文件，最后重新签发并落盘。
func (c *Client) ensureToken(ctx context.Context) error {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token.valid(c.cfg.AppKey) {
		return nil
	}

	if tok, err := c.loadToken(); err == nil && tok.valid(c.cfg.AppKey) {
		c.token = tok
		c.logger.Info("已加载本地访问令牌", zap.Time("expires_at", tok.ExpiresAt))
		return nil
	}

	tok, err := c.issueToken(ctx)
	if err != nil {
		return err
	}
	c.token = tok

	if err := c.saveToken(tok); err != nil {
		c.logger.Warn("保存访问令牌失败", zap.Error(err))
	}
	return nil
}

func (c *Client) issueToken(ctx context.Context) (accessToken, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.cfg.AppKey,
		"appsecret":  c.cfg.AppSecret,
	})
	if err != nil {
		return accessToken{}, fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}

	attempts := c.cfg.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return accessToken{}, ctxErr
		}

		tok, retryWait, err := c.requestToken(ctx, body)
		if err == nil {
			c.logger.Info("访问令牌签发成功", zap.Time("expires_at", tok.ExpiresAt))
			return tok, nil
		}
		if retryWait <= 0 || attempt == attempts {
			return accessToken{}, err
		}

		c.logger.Warn("令牌签发失败，等待重试",
			zap.Int("attempt", attempt),
			zap.Duration("wait", retryWait),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, retryWait); err != nil {
			return accessToken{}, err
		}
	}

	return accessToken{}, ErrTokenIssue
}

// requestToken 发起一次令牌请求。返回的 retryWait 大于0时表示可重试。
func (c *Client) requestToken(ctx context.Context, body []byte) (accessToken, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return accessToken{}, 0, fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 网络错误短暂等待后重试
		return accessToken{}, 5 * time.Second, fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	defer resp.Body.Close()

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return accessToken{}, 0, fmt.Errorf("%w: 解析响应失败: %v", ErrTokenIssue, err)
	}

	if strings.Contains(payload.ErrorCode, rateLimitCode) {
		return accessToken{}, time.Minute, fmt.Errorf("%w: %s", ErrRateLimited, payload.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK || payload.AccessToken == "" {
		return accessToken{}, 0, fmt.Errorf("%w: %s", ErrTokenIssue, payload.ErrorDescription)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 86400
	}
	return accessToken{
		Token:     payload.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn)*time.Second - time.Hour),
		AppKey:    c.cfg.AppKey,
	}, 0, nil
}

func (c *Client) loadToken() (accessToken, error) {
	data, err := os.ReadFile(c.cfg.TokenPath)
	if err != nil {
		return accessToken{}, err
	}
	var tok accessToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return accessToken{}, err
	}
	return tok, nil
}

func (c *Client) saveToken(tok accessToken) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.cfg.TokenPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.cfg.TokenPath, data, 0o600)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
