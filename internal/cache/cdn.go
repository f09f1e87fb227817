package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/packserve/packserve/internal/config"
)

const (
	cdnRequestTimeout = 10 * time.Second
	cdnMaxAttempts    = 3
	cdnInitialBackoff = time.Second
)

// CloudflareClient 在快照更新后向 Cloudflare 清理命名空间 JSON 文档的缓存。
// 失败按指数退避重试，耗尽后仅告警，不阻塞其他工作。
type CloudflareClient struct {
	zoneID   string
	apiToken string
	baseURL  string
	client   *http.Client
	logger   *logrus.Logger
}

// NewCloudflareClient 构造清理客户端；单请求超时固定为 10 秒。
func NewCloudflareClient(cfg config.CloudflareSettings, logger *logrus.Logger) *CloudflareClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CloudflareClient{
		zoneID:   cfg.ZoneID,
		apiToken: cfg.APIToken,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: cdnRequestTimeout},
		logger:   logger,
	}
}

type purgeRequest struct {
	Files []string `json:"files"`
}

type purgeResponse struct {
	Success bool `json:"success"`
}

// PurgeServer 清理 /{server}.json 的 CDN 缓存，最多尝试三次。
func (c *CloudflareClient) PurgeServer(ctx context.Context, server string) error {
	url := fmt.Sprintf("%s/zones/%s/purge_cache", c.baseURL, c.zoneID)
	payload, err := json.Marshal(purgeRequest{Files: []string{"/" + server + ".json"}})
	if err != nil {
		return &CDNError{Reason: err.Error()}
	}

	backoff := cdnInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cdnMaxAttempts; attempt++ {
		lastErr = c.purgeOnce(ctx, url, payload)
		if lastErr == nil {
			c.logger.WithFields(logrus.Fields{
				"action": "cdn_purge",
				"server": server,
			}).Info("CDN 缓存已清理")
			return nil
		}

		if attempt < cdnMaxAttempts {
			c.logger.WithFields(logrus.Fields{
				"action":  "cdn_purge",
				"server":  server,
				"attempt": attempt,
			}).WithError(lastErr).Warn("CDN 清理失败，准备重试")

			select {
			case <-ctx.Done():
				return &CDNError{Reason: ctx.Err().Error()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return &CDNError{Reason: lastErr.Error()}
}

func (c *CloudflareClient) purgeOnce(ctx context.Context, url string, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, cdnRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result purgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode purge response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("purge rejected: status=%d", resp.StatusCode)
	}
	return nil
}
