// Package batch 把目录里的商品图批量抠成 PNG
package batch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/bgmatte/matting"
	"github.com/chaos-io/bgmatte/util"
	"github.com/chaos-io/bgmatte/util/logger"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

type Job struct {
	InputDir    string
	OutputDir   string
	Aggressive  bool
	Concurrency int
	Processor   *matting.Processor
}

// Summary 一次 Run 的统计
type Summary struct {
	RunID     string        `json:"run_id"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Fallback  int           `json:"fallback"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Run 处理 InputDir 中输出缺失或比输入旧的图片。
// 抠图失败的文件不写输出，计入 Failed 或 Fallback；只有目录不可用或 ctx 结束时才返回错误
func (j *Job) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: ksuid.New().String()}
	log := logger.Entry(ctx).WithFields(logrus.Fields{
		"job_id": sum.RunID,
		"input":  j.InputDir,
	})
	ctx = logger.WithLogEntry(ctx, log)

	if j.Processor == nil {
		return sum, errors.New("batch job without processor")
	}
	if err := os.MkdirAll(j.OutputDir, 0o755); err != nil {
		return sum, errors.Wrap(err, "create output dir")
	}

	pending, skipped, err := j.pending()
	if err != nil {
		return sum, err
	}
	sum.Skipped = skipped

	var mu sync.Mutex
	var g errgroup.Group
	limit := j.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for _, in := range pending {
		g.Go(func() error {
			outcome := j.one(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeMatted:
				sum.Processed++
			case outcomeFallback:
				sum.Fallback++
			default:
				sum.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"processed": sum.Processed,
		"skipped":   sum.Skipped,
		"fallback":  sum.Fallback,
		"failed":    sum.Failed,
		"elapsed":   sum.Elapsed,
	}).Info("batch run finished")
	return sum, ctx.Err()
}

// OutputPath 输出文件名：原文件名去掉扩展名加 .png
func (j *Job) OutputPath(input string) string {
	base := filepath.Base(input)
	return filepath.Join(j.OutputDir, strings.TrimSuffix(base, filepath.Ext(base))+".png")
}

func (j *Job) pending() ([]string, int, error) {
	entries, err := os.ReadDir(j.InputDir)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read input dir")
	}

	var files []string
	skipped := 0
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		in := filepath.Join(j.InputDir, e.Name())
		if j.upToDate(in) {
			skipped++
			continue
		}
		files = append(files, in)
	}
	sort.Strings(files)
	return files, skipped, nil
}

func (j *Job) upToDate(in string) bool {
	inInfo, err := os.Stat(in)
	if err != nil {
		return false
	}
	outInfo, err := os.Stat(j.OutputPath(in))
	if err != nil {
		return false
	}
	return !outInfo.ModTime().Before(inInfo.ModTime())
}

type outcome int

const (
	outcomeMatted outcome = iota
	outcomeFallback
	outcomeFailed
)

func (j *Job) one(ctx context.Context, in string) outcome {
	log := logger.Entry(ctx).WithField("file", filepath.Base(in))

	data, err := util.ReadImage(in)
	if err != nil {
		log.WithError(err).Warn("skip unreadable file")
		return outcomeFailed
	}

	res, err := j.Processor.Process(ctx, data, j.Aggressive)
	if err != nil {
		log.WithError(err).Warn("matting failed, keeping original")
	}
	if !res.Matted {
		// 原图不一定是 PNG，不能写成 .png 输出
		if res.Fallback && err == nil {
			return outcomeFallback
		}
		return outcomeFailed
	}

	if err := writeFileAtomic(j.OutputPath(in), res.Data); err != nil {
		log.WithError(err).Error("write output")
		return outcomeFailed
	}
	return outcomeMatted
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bgmatte-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
