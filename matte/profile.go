package matte

import (
	"github.com/pkg/errors"
)

const (
	StandardName   = "standard"
	AggressiveName = "aggressive"
)

// Rule 单个像素判定条件，零值字段不参与判定
type Rule struct {
	Name          string
	MinChannel    int // R、G、B 均 > MinChannel
	MinBrightness int // (R+G+B)/3 > MinBrightness
	MaxRange      int // max(|R-G|,|G-B|,|R-B|) < MaxRange
	MaxRG         int // |R-G| < MaxRG
	MaxGB         int // |G-B| < MaxGB
	MaxRB         int // |R-B| < MaxRB
	Warm          bool
}

// Match 判断像素是否命中该规则
func (r Rule) Match(red, green, blue uint8) bool {
	s := statsOf(red, green, blue)
	return r.match(s)
}

func (r Rule) match(s pixelStats) bool {
	if r.MinChannel > 0 && (s.r <= r.MinChannel || s.g <= r.MinChannel || s.b <= r.MinChannel) {
		return false
	}
	if r.MinBrightness > 0 && s.brightness <= r.MinBrightness {
		return false
	}
	if r.MaxRange > 0 && s.maxDiff >= r.MaxRange {
		return false
	}
	if r.MaxRG > 0 && s.dRG >= r.MaxRG {
		return false
	}
	if r.MaxGB > 0 && s.dGB >= r.MaxGB {
		return false
	}
	if r.MaxRB > 0 && s.dRB >= r.MaxRB {
		return false
	}
	if r.Warm && !(s.r >= s.g && s.g >= s.b) {
		return false
	}
	return true
}

// Profile 一组固定阈值，每次调用选定后不再改变
type Profile struct {
	Name string

	Direct  []Rule // pass 1
	Erosion []Rule // pass 2

	FrameThreshold int     // pass 3/4：R、G、B 均 > FrameThreshold 视为浅色
	EdgeCutoff     int     // pass 3：四邻域亮度差之和
	RunFraction    float64 // pass 4：行/列长度的比例

	Sweep   *Rule // pass 5，仅 aggressive
	Cleanup []int // pass 6：亮度截断，依次执行
}

// Standard 白色/浅灰棚拍背景
func Standard() Profile {
	return Profile{
		Name: StandardName,
		Direct: []Rule{
			{Name: "pure-white", MinChannel: 240},
			{Name: "bright-flat", MinBrightness: 220, MaxRange: 30},
			{Name: "light-gray", MinBrightness: 200, MaxRange: 15},
			{Name: "tinted-white", MinBrightness: 230, MaxRG: 25, MaxGB: 25},
		},
		Erosion: []Rule{
			{Name: "halo", MinBrightness: 180, MaxRange: 50},
		},
		FrameThreshold: 200,
		EdgeCutoff:     80,
		RunFraction:    0.2,
		Cleanup:        []int{150, 120},
	}
}

// Aggressive 米白、奶油色等偏色背景，会吃掉部分浅色商品边缘
func Aggressive() Profile {
	return Profile{
		Name: AggressiveName,
		Direct: []Rule{
			{Name: "pure-white", MinChannel: 200},
			{Name: "bright-flat", MinBrightness: 180, MaxRange: 60},
			{Name: "light-gray", MinBrightness: 160, MaxRange: 40},
			{Name: "tinted-white", MinBrightness: 190, MaxRG: 50, MaxGB: 50},
			{Name: "cream", MinBrightness: 170, MaxRB: 70, Warm: true},
			{Name: "pastel", MinChannel: 150, MinBrightness: 185, MaxRange: 70},
		},
		Erosion: []Rule{
			{Name: "halo", MinBrightness: 160, MaxRange: 70},
		},
		FrameThreshold: 180,
		EdgeCutoff:     80,
		RunFraction:    0.15,
		Sweep:          &Rule{Name: "mop-up", MinChannel: 180, MinBrightness: 180},
		Cleanup:        []int{150, 120},
	}
}

func ProfileFor(aggressive bool) Profile {
	if aggressive {
		return Aggressive()
	}
	return Standard()
}

// ProfileByName 按名称取 profile，空字符串为 standard
func ProfileByName(name string) (Profile, error) {
	switch name {
	case StandardName, "":
		return Standard(), nil
	case AggressiveName:
		return Aggressive(), nil
	default:
		return Profile{}, errors.Errorf("unknown profile: %s", name)
	}
}

type pixelStats struct {
	r, g, b       int
	brightness    int
	maxDiff       int
	dRG, dGB, dRB int
}

func statsOf(red, green, blue uint8) pixelStats {
	r, g, b := int(red), int(green), int(blue)
	s := pixelStats{
		r:          r,
		g:          g,
		b:          b,
		brightness: (r + g + b) / 3,
		dRG:        absInt(r - g),
		dGB:        absInt(g - b),
		dRB:        absInt(r - b),
	}
	s.maxDiff = max(s.dRG, s.dGB, s.dRB)
	return s
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
