// Package matting 编码图片的抠图流程：解码、抠图、编码，带缓存；任何一步出错都返回原图
package matting

import (
	"context"
	"image"
	"time"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chaos-io/bgmatte/cache"
	"github.com/chaos-io/bgmatte/codec"
	"github.com/chaos-io/bgmatte/matte"
	"github.com/chaos-io/bgmatte/util/logger"
)

// ErrTimeout 超过配置的超时时间仍未完成
var ErrTimeout = errors.New("matting timed out")

// Result 一次处理的结果。Data 总是可用的，失败时就是调用方传入的原图
type Result struct {
	Data     []byte
	Matted   bool
	Cached   bool
	Fallback bool
	// Reason Fallback 为 true 时的原因
	Reason  string
	Report  *matte.Report
	Profile string
	Format  string
	DataURI bool
	// HadAlpha 输入本身已有透明像素
	HadAlpha bool
	Width    int
	Height   int
}

type ProcessorOption func(p *Processor) error

type Processor struct {
	cache        cache.Cache
	timeout      time.Duration
	pool         *Pool
	maxDimension int
	concurrency  int
	log          *logrus.Entry
	run          matteFunc
}

func NewProcessor(opts ...ProcessorOption) (*Processor, error) {
	p := &Processor{
		cache: cache.Nop{},
		run:   matte.Run,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func WithCache(c cache.Cache) ProcessorOption {
	return func(p *Processor) error {
		if c == nil {
			c = cache.Nop{}
		}
		p.cache = c
		return nil
	}
}

// WithTimeout 单次 Process 的超时，0 不限制
func WithTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) error {
		if d < 0 {
			return errors.Errorf("negative timeout %s", d)
		}
		p.timeout = d
		return nil
	}
}

func WithPool(pool *Pool) ProcessorOption {
	return func(p *Processor) error {
		p.pool = pool
		return nil
	}
}

// WithMaxDimension 最长边超过 n 时先缩小再抠图
func WithMaxDimension(n int) ProcessorOption {
	return func(p *Processor) error {
		if n < 0 {
			return errors.Errorf("negative max dimension %d", n)
		}
		p.maxDimension = n
		return nil
	}
}

// WithConcurrency ProcessBatch 的并发数，0 取 GOMAXPROCS
func WithConcurrency(n int) ProcessorOption {
	return func(p *Processor) error {
		p.concurrency = n
		return nil
	}
}

func WithLogger(e *logrus.Entry) ProcessorOption {
	return func(p *Processor) error {
		p.log = e
		return nil
	}
}

func (p *Processor) entry(ctx context.Context) *logrus.Entry {
	if p.log != nil {
		return p.log
	}
	return logger.Entry(ctx)
}

// ProcessImage 对原始图片字节或 data URI 抠图，返回 PNG 字节；输入是 data URI 时返回 PNG data URI。
// 出错时返回原图和错误
func (p *Processor) ProcessImage(ctx context.Context, input []byte, aggressive bool) ([]byte, error) {
	res, err := p.Process(ctx, input, aggressive)
	return res.Data, err
}

// Process 同 ProcessImage，返回完整结果，*Result 不会为 nil
func (p *Processor) Process(ctx context.Context, input []byte, aggressive bool) (*Result, error) {
	start := time.Now()
	profile := matte.ProfileFor(aggressive)
	log := p.entry(ctx).WithFields(logrus.Fields{
		"profile": profile.Name,
		"bytes":   len(input),
	})

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res, err := p.process(ctx, input, profile)
	log = log.WithFields(logrus.Fields{
		"elapsed":  time.Since(start),
		"fallback": res.Fallback,
		"cached":   res.Cached,
	})
	switch {
	case err != nil:
		log.WithError(err).Warn("matting failed, returning original")
	case res.Fallback:
		log.WithField("reason", res.Reason).Error("matting panicked, returning original")
	default:
		log.Debug("matted")
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, input []byte, profile matte.Profile) (*Result, error) {
	res := &Result{Profile: profile.Name}
	fail := func(err error) (*Result, error) {
		res.Data = input
		res.Matted = false
		res.Fallback = true
		res.Reason = err.Error()
		return res, err
	}

	payload := input
	uri, isURI, err := codec.ParseDataURI(input)
	if err != nil {
		return fail(err)
	}
	if isURI {
		payload = uri.Data
		res.DataURI = true
	}

	key := cache.Key(payload, profile.Name)
	if hit, ok := p.cache.Get(key); ok {
		entry, err := decodeEntry(hit)
		if err == nil {
			res.Data = p.wrap(entry.PNG, isURI)
			res.Matted = true
			res.Cached = true
			res.Report = entry.Report
			res.Format = entry.Format
			res.HadAlpha = entry.HadAlpha
			res.Width, res.Height = entry.Width, entry.Height
			return res, nil
		}
		p.entry(ctx).WithError(err).WithField("key", key).Warn("drop unreadable cache entry")
		p.cache.Delete(key)
	}

	img, format, err := codec.Decode(payload)
	if err != nil {
		return fail(err)
	}
	res.Format = format
	if p.maxDimension > 0 {
		img = resizeWithinMax(img, p.maxDimension)
	}
	raster := matte.FromImage(img)
	res.Width, res.Height = raster.Width, raster.Height
	res.HadAlpha = matte.HasTransparency(raster)

	out, report, err := p.matte(ctx, raster, profile)
	if err != nil {
		return fail(err)
	}
	res.Report = report
	if report.Fallback {
		res.Data = input
		res.Fallback = true
		res.Reason = "panic: " + report.Panic
		return res, nil
	}

	encoded, err := codec.EncodePNG(out.Image())
	if err != nil {
		return fail(err)
	}
	entry, err := encodeEntry(&cacheEntry{
		PNG:      encoded,
		Report:   report,
		Format:   res.Format,
		HadAlpha: res.HadAlpha,
		Width:    res.Width,
		Height:   res.Height,
	})
	if err != nil {
		p.entry(ctx).WithError(err).Warn("encode cache entry")
	} else {
		p.cache.Set(key, entry)
	}

	res.Data = p.wrap(encoded, isURI)
	res.Matted = true
	return res, nil
}

func (p *Processor) wrap(png []byte, isURI bool) []byte {
	if isURI {
		return codec.FormatDataURI(codec.MimePNG, png)
	}
	return png
}

// matte 有 pool 就放到 pool 上跑，否则单独起 goroutine，两种情况都能按超时放弃
func (p *Processor) matte(ctx context.Context, img *matte.RasterImage, profile matte.Profile) (*matte.RasterImage, *matte.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, ctxError(err)
	}

	if p.pool != nil {
		out, report, err := p.pool.Matte(ctx, img, profile)
		return out, report, ctxError(err)
	}

	c := make(chan poolResult, 1)
	go func() {
		out, report, err := p.run(img, profile)
		c <- poolResult{out, report, err}
	}()
	select {
	case res := <-c:
		return res.out, res.report, res.err
	case <-ctx.Done():
		return nil, nil, ctxError(ctx.Err())
	}
}

func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return err
}

// resizeWithinMax 缩放（最长边 <= maxSize）
func resizeWithinMax(img image.Image, maxSize int) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	return resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
}
