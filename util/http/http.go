package http

import (
	"context"
	"time"
)

// IClient 下载远程源图
type IClient interface {
	Download(ctx context.Context, param *RequestParam) ([]byte, error)
}

type RequestParam struct {
	RequestURI string
	Header     map[string]string

	// Timeout 单次下载超时，0 使用客户端默认值
	Timeout time.Duration
	// MaxBytes 响应体上限，0 使用客户端默认值
	MaxBytes int64
}
