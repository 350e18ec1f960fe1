// Package api 封装仪表盘到后端的 REST 边界
// 所有响应在这里解包统一信封并归一化为 domain 模型，UI 层不接触原始报文
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/moneymaster/tradedash/pkg/ratelimit"
)

var log = logrus.WithField("component", "api")

// Client 后端 REST 客户端
type Client struct {
	client  *resty.Client
	limiter *ratelimit.TokenBucket
}

// NewClient 创建后端 REST 客户端
// resty 自动从环境变量读取代理配置（HTTP_PROXY / HTTPS_PROXY）
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(0). // 轮询类请求不做单次重试，下一个周期自然兜底
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "tradedash/1.0")

	return &Client{
		client: client,
		// 多个轮询器同时到期时压平请求尖峰
		limiter: ratelimit.NewTokenBucket(10, 10),
	}
}

// envelope 后端统一响应信封 {code, msg, data}
// code 为字符串 "0" 表示成功；历史版本部分端点直接返回裸数组，
// 解码时兼容两种形态（见 decodeEnvelope）
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// get 发送 GET 请求并返回信封里的 data 段
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "等待限速失败")
	}
	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "请求失败 GET %s", endpoint)
	}
	return decodeEnvelope(endpoint, resp)
}

// post 发送 POST 请求并返回信封里的 data 段（没有信封时返回原始 body）
func (c *Client) post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "等待限速失败")
	}
	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "请求失败 POST %s", endpoint)
	}
	return decodeEnvelope(endpoint, resp)
}

// decodeEnvelope 解包响应：
//   - HTTP 非 2xx 直接报错
//   - body 以 '[' 开头视为裸数组（旧版端点形态），原样返回
//   - 否则按 {code, msg, data} 信封解析，code != "0" 返回 BusinessError
//   - 没有 code 字段的对象（例如 {status:"success"}）原样返回
func decodeEnvelope(endpoint string, resp *resty.Response) (json.RawMessage, error) {
	if !resp.IsSuccess() {
		return nil, errors.Errorf("http %d: %s %s", resp.StatusCode(), endpoint, truncateBody(resp.Body()))
	}

	body := resp.Body()
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.Errorf("空响应: %s", endpoint)
	}
	if trimmed[0] == '[' {
		return json.RawMessage(body), nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrapf(err, "解析响应失败 %s: %s", endpoint, truncateBody(body))
	}
	if env.Code == "" {
		// 无信封对象，交给上层的具体解析函数
		return json.RawMessage(body), nil
	}
	if env.Code != "0" {
		return nil, &BusinessError{Endpoint: endpoint, Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

func truncateBody(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// BusinessError 后端业务错误（code != "0"）
type BusinessError struct {
	Endpoint string
	Code     string
	Msg      string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("后端业务错误 %s: code=%s msg=%s", e.Endpoint, e.Code, e.Msg)
}

// IsBusinessError 判断错误是否为后端业务错误
func IsBusinessError(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}
