// Package matte 把商品图的白色/浅色背景和边框变成透明。
//
// 所有判定都是确定性的颜色/亮度阈值，只会把 alpha 置 0，不改 RGB。
package matte

import (
	"fmt"
	"image"
)

type pass struct {
	name  string
	apply func(img *RasterImage, p Profile) int
}

// PassResult 单个 pass 去掉的像素数
type PassResult struct {
	Name    string `json:"name"`
	Removed int    `json:"removed"`
}

// Report 一次处理的统计信息
type Report struct {
	Profile     string          `json:"profile"`
	Passes      []PassResult    `json:"passes"`
	Total       int             `json:"total"`
	Transparent int             `json:"transparent"`
	Bounds      image.Rectangle `json:"-"`
	HasSubject  bool            `json:"has_subject"`

	// Fallback 为 true 时返回的是原图
	Fallback bool   `json:"fallback"`
	Panic    string `json:"panic,omitempty"`
}

// Removed 所有 pass 去掉的像素总数
func (r *Report) Removed() int {
	n := 0
	for _, p := range r.Passes {
		n += p.Removed
	}
	return n
}

func pipeline(p Profile) []pass {
	passes := []pass{
		{name: "direct", apply: directPass},
		{name: "erosion", apply: erosionPass},
		{name: "frame-edge", apply: frameEdgePass},
		{name: "frame-run", apply: frameRunPass},
	}
	if p.Sweep != nil {
		passes = append(passes, pass{name: "aggressive-sweep", apply: aggressiveSweepPass})
	}
	for _, cutoff := range p.Cleanup {
		passes = append(passes, pass{name: fmt.Sprintf("cleanup-%d", cutoff), apply: cleanupPass(cutoff)})
	}
	return passes
}

// buildPipeline 测试里可替换
var buildPipeline = pipeline

// Process 返回同尺寸的新图像，背景/边框像素 alpha 为 0，输入不会被修改
func Process(img *RasterImage, p Profile) (*RasterImage, error) {
	out, _, err := Run(img, p)
	return out, err
}

// Run 同 Process，额外返回统计。
// pass 内部 panic 时返回原图的拷贝，Report.Fallback 为 true，error 为 nil。
func Run(img *RasterImage, p Profile) (out *RasterImage, report *Report, err error) {
	if err := img.Validate(); err != nil {
		return nil, nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			out = img.Clone()
			report = &Report{
				Profile:  p.Name,
				Fallback: true,
				Panic:    fmt.Sprint(r),
			}
			if out.Validate() == nil {
				report.summarize(out)
			}
			err = nil
		}
	}()

	out = img.Clone()
	report = &Report{Profile: p.Name}
	for _, ps := range buildPipeline(p) {
		report.Passes = append(report.Passes, PassResult{
			Name:    ps.name,
			Removed: ps.apply(out, p),
		})
	}
	report.summarize(out)
	return out, report, nil
}

func (r *Report) summarize(img *RasterImage) {
	r.Total = img.Width * img.Height
	r.Transparent = 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 0 {
			r.Transparent++
		}
	}
	r.Bounds, r.HasSubject = SubjectBounds(img)
}
