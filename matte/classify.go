package matte

// 逐像素分类：pass 1、2、5、6。已透明的像素直接跳过。

func sweep(img *RasterImage, match func(pixelStats) bool) int {
	removed := 0
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i+3] == 0 {
			continue
		}
		if match(statsOf(pix[i], pix[i+1], pix[i+2])) {
			pix[i+3] = 0
			removed++
		}
	}
	return removed
}

func anyRule(rules []Rule) func(pixelStats) bool {
	return func(s pixelStats) bool {
		for _, r := range rules {
			if r.match(s) {
				return true
			}
		}
		return false
	}
}

func directPass(img *RasterImage, p Profile) int {
	return sweep(img, anyRule(p.Direct))
}

func erosionPass(img *RasterImage, p Profile) int {
	return sweep(img, anyRule(p.Erosion))
}

func aggressiveSweepPass(img *RasterImage, p Profile) int {
	if p.Sweep == nil {
		return 0
	}
	return sweep(img, p.Sweep.match)
}

// cleanupPass 不看色差，亮度超过 cutoff 一律去掉
func cleanupPass(cutoff int) func(*RasterImage, Profile) int {
	return func(img *RasterImage, _ Profile) int {
		return sweep(img, func(s pixelStats) bool {
			return s.brightness > cutoff
		})
	}
}
