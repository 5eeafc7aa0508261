package matting

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchItem inputs[Index] 的处理结果
type BatchItem struct {
	Index  int
	Result *Result
	Err    error
}

// ProcessBatch 并发处理 inputs，各项互不影响：失败的一项带回原图和错误，其余照常处理
func (p *Processor) ProcessBatch(ctx context.Context, inputs [][]byte, aggressive bool) []BatchItem {
	items := make([]BatchItem, len(inputs))

	limit := p.concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := p.Process(ctx, in, aggressive)
			items[i] = BatchItem{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}
