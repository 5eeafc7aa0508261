package matting

import (
	"context"
	"runtime"

	"github.com/pkg/errors"

	"github.com/chaos-io/bgmatte/matte"
)

// ErrPoolClosed pool 的 ctx 结束后返回
var ErrPoolClosed = errors.New("matting pool closed")

type matteFunc func(img *matte.RasterImage, p matte.Profile) (*matte.RasterImage, *matte.Report, error)

// Pool 固定数量的 goroutine 执行抠图，生命周期跟随 NewPool 传入的 ctx
type Pool struct {
	ctx   context.Context
	input chan poolRequest
	run   matteFunc
}

type poolRequest struct {
	C       chan poolResult
	img     *matte.RasterImage
	profile matte.Profile
}

type poolResult struct {
	out    *matte.RasterImage
	report *matte.Report
	err    error
}

// NewPool 启动 workers 个 goroutine，<= 0 时取 GOMAXPROCS
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		ctx:   ctx,
		input: make(chan poolRequest, workers),
		run:   matte.Run,
	}
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

// Matte 把 img 交给 worker 并等待结果。ctx 先结束时 worker 仍会跑完，结果丢弃
func (p *Pool) Matte(ctx context.Context, img *matte.RasterImage, profile matte.Profile) (*matte.RasterImage, *matte.Report, error) {
	req := poolRequest{
		C:       make(chan poolResult, 1),
		img:     img,
		profile: profile,
	}
	select {
	case p.input <- req:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, nil, ErrPoolClosed
	}
	select {
	case res, ok := <-req.C:
		if !ok {
			return nil, nil, ErrPoolClosed
		}
		return res.out, res.report, res.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, nil, ErrPoolClosed
	}
}

func (p *Pool) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.input:
			if p.ctx.Err() != nil {
				close(req.C)
				return
			}
			out, report, err := p.run(req.img, req.profile)
			req.C <- poolResult{out, report, err}
		}
	}
}
