package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultTimeout = 30 * time.Second
	// defaultMaxBytes 源图片不会超过这个量级
	defaultMaxBytes = 64 << 20
)

// ErrTooLarge 响应体超过 MaxBytes
var ErrTooLarge = errors.New("response body too large")

type HTTPClient struct {
	client   *http.Client
	maxBytes int64
}

var _ IClient = (*HTTPClient)(nil)

func NewHTTPClient() IClient {
	return &HTTPClient{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
	}
}

// Download GET 请求，返回原始响应体；状态码 >= 400 时错误信息带上响应体
func (c *HTTPClient) Download(ctx context.Context, param *RequestParam) ([]byte, error) {
	if param == nil {
		return nil, errors.New("request param is nil")
	}
	if param.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, param.Timeout)
		defer cancel()
	}
	limit := c.maxBytes
	if param.MaxBytes > 0 {
		limit = param.MaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, param.RequestURI, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	for k, v := range param.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// 多读一个字节用来判断是否超限
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if int64(len(data)) > limit {
			data = data[:limit]
		}
		return nil, errors.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, string(data))
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "limit %d bytes", limit)
	}
	return data, nil
}
