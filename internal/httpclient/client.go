package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 15 * time.Second
	// MaxBodySize 读取响应体的上限
	MaxBodySize = 1 << 20
	UserAgent   = "pocsuite/1.0"
)

// Client 插件共用的HTTP客户端，附加统一的请求头
type Client struct {
	http    *http.Client
	headers map[string]string
}

// New timeout 为整个请求（含读取响应体）的超时，<=0 时使用 DefaultTimeout
func New(timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// 目标多为自签名证书
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: tr,
			// 不跟随跳转，保留原始响应
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		headers: headers,
	}
}

// Response 已读取响应体的结果
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

func (c *Client) Post(ctx context.Context, url string, body io.Reader) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

// Do 发送请求并读取至多 MaxBodySize 字节的响应体
func (c *Client) Do(ctx context.Context, method, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
