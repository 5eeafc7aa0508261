package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/chaos-io/bgmatte/codec"
	"github.com/chaos-io/bgmatte/matting"
)

// multipart 头部和 base64 的额外开销
const envelopeBytes = 64 << 10

type matteQuery struct {
	Aggressive *bool `form:"aggressive"`
}

type matteRequest struct {
	Image      string `json:"image" binding:"required"`
	Aggressive *bool  `json:"aggressive"`
}

type batchRequest struct {
	Images     []string `json:"images" binding:"required,min=1"`
	Aggressive *bool    `json:"aggressive"`
}

type bounds struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type matteResponse struct {
	Image    string  `json:"image"`
	Matted   bool    `json:"matted"`
	Cached   bool    `json:"cached"`
	Fallback bool    `json:"fallback"`
	Error    string  `json:"error,omitempty"`
	Bounds   *bounds `json:"bounds,omitempty"`
}

type batchResponse struct {
	Results []matteResponse `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (s *Server) profile(choice *bool) bool {
	if choice != nil {
		return *choice
	}
	return s.aggressive
}

func (s *Server) matte(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		s.matteUpload(c)
		return
	}
	s.matteJSON(c)
}

// matteUpload 表单字段 image，返回 PNG 字节
func (s *Server) matteUpload(c *gin.Context) {
	var q matteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, http.StatusBadRequest, "invalid aggressive flag")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+envelopeBytes)
	fh, err := c.FormFile("image")
	if err != nil {
		if tooLarge(err) {
			abort(c, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		abort(c, http.StatusBadRequest, "missing image field")
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		abort(c, http.StatusRequestEntityTooLarge, "image too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "unreadable image field")
		return
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		abort(c, http.StatusBadRequest, "unreadable image field")
		return
	}
	if len(data) == 0 {
		abort(c, http.StatusBadRequest, "empty image")
		return
	}

	mime := codec.Sniff(data)
	if !codec.IsAllowedUpload(mime) {
		abort(c, http.StatusUnsupportedMediaType, "unsupported image type "+mime)
		return
	}

	res, _ := s.proc.Process(c.Request.Context(), data, s.profile(q.Aggressive))
	contentType := codec.MimePNG
	if res.Fallback {
		c.Header(HeaderFallback, res.Reason)
		contentType = mime
	}
	c.Data(http.StatusOK, contentType, res.Data)
}

// matteJSON {"image": "<data uri>"}，返回 data URI
func (s *Server) matteJSON(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes*4/3+envelopeBytes)

	var req matteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			abort(c, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		abort(c, http.StatusBadRequest, "missing image")
		return
	}

	input := []byte(req.Image)
	if status, msg := s.checkDataURI(input); status != http.StatusOK {
		abort(c, status, msg)
		return
	}

	res, err := s.proc.Process(c.Request.Context(), input, s.profile(req.Aggressive))
	c.JSON(http.StatusOK, toResponse(res, err))
}

func (s *Server) matteBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBatchImages*(s.cfg.MaxUploadBytes*4/3+envelopeBytes))

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			abort(c, http.StatusRequestEntityTooLarge, "batch too large")
			return
		}
		abort(c, http.StatusBadRequest, "missing images")
		return
	}
	if len(req.Images) > maxBatchImages {
		abort(c, http.StatusRequestEntityTooLarge, "too many images")
		return
	}

	results := make([]matteResponse, len(req.Images))
	var inputs [][]byte
	var slots []int
	for i, img := range req.Images {
		input := []byte(img)
		if status, msg := s.checkDataURI(input); status != http.StatusOK {
			results[i] = matteResponse{Image: img, Fallback: true, Error: msg}
			continue
		}
		inputs = append(inputs, input)
		slots = append(slots, i)
	}

	for _, item := range s.proc.ProcessBatch(c.Request.Context(), inputs, s.profile(req.Aggressive)) {
		results[slots[item.Index]] = toResponse(item.Result, item.Err)
	}
	c.JSON(http.StatusOK, batchResponse{Results: results})
}

// checkDataURI 只拒绝明显不合法的请求；能解析但无法解码的交给 matting 走原图返回
func (s *Server) checkDataURI(input []byte) (int, string) {
	uri, ok, err := codec.ParseDataURI(input)
	if !ok {
		return http.StatusBadRequest, "image must be a data uri"
	}
	if err != nil {
		return http.StatusOK, ""
	}
	if int64(len(uri.Data)) > s.cfg.MaxUploadBytes {
		return http.StatusRequestEntityTooLarge, "image too large"
	}
	if mime := codec.Sniff(uri.Data); !codec.IsAllowedUpload(mime) {
		return http.StatusUnsupportedMediaType, "unsupported image type " + mime
	}
	return http.StatusOK, ""
}

func toResponse(res *matting.Result, err error) matteResponse {
	out := matteResponse{
		Image:    string(res.Data),
		Matted:   res.Matted,
		Cached:   res.Cached,
		Fallback: res.Fallback,
	}
	if err != nil {
		out.Error = err.Error()
	} else if res.Fallback {
		out.Error = res.Reason
	}
	if res.Report != nil && res.Report.HasSubject {
		b := res.Report.Bounds
		out.Bounds = &bounds{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}
	}
	return out
}
