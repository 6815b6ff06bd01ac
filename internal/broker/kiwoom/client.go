package kiwoom

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/broker"
)

// restClient 键움 REST API 客户端
//
// 令牌按 expires_dt 缓存，过期前 5 分钟自动换新。
// 所有接口走统一的 call 入口：api-id 放请求头，正文 JSON。
type restClient struct {
	http      *resty.Client
	appKey    string
	appSecret string

	mu          sync.Mutex
	token       string
	tokenExpire time.Time

	log *logrus.Entry
}

func newRESTClient(baseURL string, timeout time.Duration, appKey, appSecret string) *restClient {
	baseURL = strings.TrimSuffix(baseURL, "/")

	// resty 自动读取 HTTP_PROXY / HTTPS_PROXY 环境变量
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先用 Retry-After 头
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &restClient{
		http:      client,
		appKey:    appKey,
		appSecret: appSecret,
		log:       logrus.WithField("component", "kiwoom.rest"),
	}
}

// tokenResponse 접근토큰 발급 (au10001)
type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresDt string `json:"expires_dt"` // yyyyMMddHHmmss
	ReturnCode int   `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
}

// ensureToken 返回有效令牌，必要时重新签发
func (c *restClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpire) > 5*time.Minute {
		return c.token, nil
	}

	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json;charset=UTF-8").
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     c.appKey,
			"secretkey":  c.appSecret,
		}).
		SetResult(&out).
		Post("/oauth2/token")
	if err != nil {
		return "", errors.Wrap(err, "issue token")
	}
	if !resp.IsSuccess() || out.ReturnCode != 0 {
		return "", broker.AdapterCallError(out.ReturnCode, "issue token")
	}

	c.token = out.Token
	c.tokenExpire = time.Now().Add(23 * time.Hour)
	if exp, err := time.ParseInLocation("20060102150405", out.ExpiresDt, time.Local); err == nil {
		c.tokenExpire = exp
	}
	c.log.Infof("접근토큰 签发成功，有效期至 %s", c.tokenExpire.Format("2006-01-02 15:04"))
	return c.token, nil
}

// revokeToken 注销令牌（关闭连接时调用）
func (c *restClient) revokeToken(ctx context.Context) {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()
	if token == "" {
		return
	}

	_, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json;charset=UTF-8").
		SetBody(map[string]string{
			"appkey":    c.appKey,
			"secretkey": c.appSecret,
			"token":     token,
		}).
		Post("/oauth2/revoke")
	if err != nil {
		c.log.Warnf("令牌注销失败: %v", err)
	}
}

// apiEnvelope 所有业务接口共有的返回码字段
type apiEnvelope struct {
	ReturnCode int    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
}

// call 统一请求入口
// apiID 放 api-id 头，out 必须内嵌 apiEnvelope 以便判别业务错误
func (c *restClient) call(ctx context.Context, apiID, path string, body any, out any, env *apiEnvelope) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json;charset=UTF-8").
		SetHeader("authorization", "Bearer "+token).
		SetHeader("api-id", apiID).
		SetBody(body).
		SetResult(out).
		Post(path)
	if err != nil {
		return errors.Wrapf(err, "call %s", apiID)
	}
	if resp.StatusCode() == 401 {
		// 令牌失效：清空缓存，让下一次调用重新签发
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return errors.Wrapf(broker.ErrAdapterCall, "%s: unauthorized", apiID)
	}
	if !resp.IsSuccess() {
		return broker.AdapterCallError(resp.StatusCode(), apiID)
	}
	if env != nil && env.ReturnCode != 0 {
		return errors.Wrapf(broker.ErrAdapterCall, "%s: [%d] %s", apiID, env.ReturnCode, env.ReturnMsg)
	}
	return nil
}
