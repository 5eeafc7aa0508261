package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgmatte/cache"
	"github.com/chaos-io/bgmatte/codec"
	"github.com/chaos-io/bgmatte/config"
	"github.com/chaos-io/bgmatte/matting"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func productPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 5 && x < 15 && y >= 5 && y < 15 {
				c = color.NRGBA{R: 20, G: 40, B: 60, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	data, err := codec.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func newServer(t *testing.T, maxUpload int64) http.Handler {
	t.Helper()
	proc, err := matting.NewProcessor()
	require.NoError(t, err)
	cfg := config.Default().Server
	if maxUpload > 0 {
		cfg.MaxUploadBytes = maxUpload
	}
	return New(proc, cfg, false).Handler()
}

func upload(t *testing.T, field string, data []byte, query string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/matte"+query, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func postJSON(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(newServer(t, 0), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestMatteUpload(t *testing.T) {
	t.Parallel()

	h := newServer(t, 0)
	rec := serve(h, upload(t, "image", productPNG(t), "?aggressive=true"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, codec.MimePNG, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get(HeaderFallback))

	img, _, err := codec.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint8(0), color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA).A)
	assert.Equal(t, uint8(255), color.NRGBAModel.Convert(img.At(10, 10)).(color.NRGBA).A)
}

func TestMatteUpload_Errors(t *testing.T) {
	t.Parallel()

	png := productPNG(t)
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		max  int64
		want int
	}{
		{
			name: "missing field",
			req:  func(t *testing.T) *http.Request { return upload(t, "file", png, "") },
			want: http.StatusBadRequest,
		},
		{
			name: "bad aggressive flag",
			req:  func(t *testing.T) *http.Request { return upload(t, "image", png, "?aggressive=maybe") },
			want: http.StatusBadRequest,
		},
		{
			name: "oversized",
			req:  func(t *testing.T) *http.Request { return upload(t, "image", png, "") },
			max:  int64(len(png) - 1),
			want: http.StatusRequestEntityTooLarge,
		},
		{
			name: "pdf",
			req: func(t *testing.T) *http.Request {
				return upload(t, "image", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), "")
			},
			want: http.StatusUnsupportedMediaType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newServer(t, tt.max), tt.req(t))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMatteUpload_FailOpen(t *testing.T) {
	t.Parallel()

	// PNG 签名正确但内容被截断：仍然 200，返回原图
	broken := productPNG(t)[:60]
	rec := serve(newServer(t, 0), upload(t, "image", broken, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderFallback))
	assert.Equal(t, broken, rec.Body.Bytes())
}

func TestMatteJSON(t *testing.T) {
	t.Parallel()

	h := newServer(t, 0)
	uri := string(codec.FormatDataURI("image/png", productPNG(t)))
	rec := serve(h, postJSON(t, "/v1/matte", map[string]any{"image": uri}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp matteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matted)
	assert.False(t, resp.Fallback)
	assert.Empty(t, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Image, "data:image/png;base64,"))
	require.NotNil(t, resp.Bounds)
	assert.Equal(t, bounds{X: 5, Y: 5, W: 10, H: 10}, *resp.Bounds)

	// 第二次命中缓存需要显式配置，这里默认不缓存
	rec = serve(h, postJSON(t, "/v1/matte", map[string]any{"image": uri}))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
}

func TestMatteJSON_Cached(t *testing.T) {
	t.Parallel()

	proc, err := matting.NewProcessor(matting.WithCache(cache.NewLRU(1<<20, time.Minute)))
	require.NoError(t, err)
	h := New(proc, config.Default().Server, false).Handler()
	uri := string(codec.FormatDataURI("image/png", productPNG(t)))

	for i, cached := range []bool{false, true} {
		rec := serve(h, postJSON(t, "/v1/matte", map[string]any{"image": uri}))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp matteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equalf(t, cached, resp.Cached, "request %d", i)
		require.NotNilf(t, resp.Bounds, "request %d", i)
		assert.Equal(t, bounds{X: 5, Y: 5, W: 10, H: 10}, *resp.Bounds)
	}
}

func TestMatteJSON_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing image", map[string]any{"aggressive": true}, http.StatusBadRequest},
		{"not a data uri", map[string]any{"image": "aGVsbG8="}, http.StatusBadRequest},
		{"pdf", map[string]any{"image": string(codec.FormatDataURI("application/pdf", []byte("%PDF-1.4\n")))}, http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newServer(t, 0), postJSON(t, "/v1/matte", tt.body))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMatteJSON_FailOpen(t *testing.T) {
	t.Parallel()

	uri := "data:image/png;base64,@@@@"
	rec := serve(newServer(t, 0), postJSON(t, "/v1/matte", map[string]any{"image": uri}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp matteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uri, resp.Image)
	assert.True(t, resp.Fallback)
	assert.False(t, resp.Matted)
	assert.NotEmpty(t, resp.Error)
}

func TestMatteBatch(t *testing.T) {
	t.Parallel()

	good := string(codec.FormatDataURI("image/png", productPNG(t)))
	images := []string{good, "not a data uri", good}
	rec := serve(newServer(t, 0), postJSON(t, "/v1/matte/batch", map[string]any{"images": images, "aggressive": true}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)

	assert.True(t, resp.Results[0].Matted)
	assert.True(t, resp.Results[1].Fallback)
	assert.Equal(t, "not a data uri", resp.Results[1].Image)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.True(t, resp.Results[2].Matted)
	assert.Equal(t, resp.Results[0].Image, resp.Results[2].Image)
}

func TestMatteBatch_Errors(t *testing.T) {
	t.Parallel()

	rec := serve(newServer(t, 0), postJSON(t, "/v1/matte/batch", map[string]any{"images": []string{}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	many := make([]string, maxBatchImages+1)
	for i := range many {
		many[i] = "x"
	}
	rec = serve(newServer(t, 0), postJSON(t, "/v1/matte/batch", map[string]any{"images": many}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
