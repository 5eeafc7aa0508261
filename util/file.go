package util

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"

	uhttp "github.com/chaos-io/bgmatte/util/http"
)

var client uhttp.IClient = uhttp.NewHTTPClient()

// IsURL 判断是否为 http(s) 地址
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// ReadSource 读取本地文件或下载远程图片，返回原始字节
func ReadSource(ctx context.Context, src string) ([]byte, error) {
	if IsURL(src) {
		return DownloadImage(ctx, src)
	}
	return ReadImage(src)
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	data, err := client.Download(ctx, &uhttp.RequestParam{
		RequestURI: url,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "download %s", url)
	}
	return data, nil
}

// ReadImage 读取本地图片
func ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}
