package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const userAgent = "utpunwind/1"

type Client struct {
	client  *resty.Client
	headers map[string]string
}

type ClientOption func(*Client)

// WithHeader sets a header on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers[key] = value }
}

// WithRetry overrides retry count and wait bounds.
func WithRetry(count int, wait, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.client.SetRetryCount(count).SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.SetTimeout(d) }
}

func NewClient(host string, opts ...ClientOption) *Client {
	host = strings.TrimSuffix(host, "/")

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先使用 Retry-After 头
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if secs, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil && secs >= 0 {
					return time.Duration(secs) * time.Second, nil
				}
				return client.RetryMaxWaitTime, nil
			}
			return 0, nil
		})

	c := &Client{client: client, headers: map[string]string{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

// 仅设置本次请求的 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", userAgent)
	for k, v := range c.headers {
		r.SetHeader(k, v)
	}
	return r
}

func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) (*resty.Response, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}
	if out != nil {
		rc.SetResult(out)
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return rc.Get(endpoint)
	case http.MethodPost:
		return rc.Post(endpoint)
	case http.MethodDelete:
		return rc.Delete(endpoint)
	case http.MethodPut:
		return rc.Put(endpoint)
	default:
		return nil, errors.Errorf("unsupported method: %s", method)
	}
}

// Do runs DoRequest and folds non-2xx responses into an *HTTPError.
func (c *Client) Do(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) error {
	resp, err := c.DoRequest(ctx, method, endpoint, opt, out)
	return ParseHTTPError(resp, err)
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s %s: %v", e.Status, e.Method, e.URL, e.Body)
}

func ParseHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "http request")
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return &HTTPError{
		Method: resp.Request.Method,
		URL:    resp.Request.URL,
		Status: resp.StatusCode(),
		Body:   body,
	}
}
