package matte

// 边框检测：pass 3（四邻域边缘强度）和 pass 4（行/列游程）。
// pass 3 的邻居只看 RGB；pass 4 的游程只由 pass 开始时可见的浅色像素组成。

func isLight(pix []uint8, i, threshold int) bool {
	return int(pix[i]) > threshold && int(pix[i+1]) > threshold && int(pix[i+2]) > threshold
}

// luminance 每个像素的 (R+G+B)/3
func luminance(img *RasterImage) []int {
	lum := make([]int, img.Width*img.Height)
	for i := range lum {
		p := i * 4
		lum[i] = (int(img.Pix[p]) + int(img.Pix[p+1]) + int(img.Pix[p+2])) / 3
	}
	return lum
}

// edgeStrength |P-左| + |P-右| + |P-上| + |P-下|，图像边界外的邻居不计
func edgeStrength(lum []int, w, h, x, y int) int {
	c := lum[y*w+x]
	sum := 0
	if x > 0 {
		sum += absInt(c - lum[y*w+x-1])
	}
	if x < w-1 {
		sum += absInt(c - lum[y*w+x+1])
	}
	if y > 0 {
		sum += absInt(c - lum[(y-1)*w+x])
	}
	if y < h-1 {
		sum += absInt(c - lum[(y+1)*w+x])
	}
	return sum
}

// frameEdgePass 浅色且局部对比强烈的像素是边框的边界，不是商品内部
func frameEdgePass(img *RasterImage, p Profile) int {
	w, h := img.Width, img.Height
	lum := luminance(img)
	removed := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			if img.Pix[i+3] == 0 || !isLight(img.Pix, i, p.FrameThreshold) {
				continue
			}
			if edgeStrength(lum, w, h, x, y) > p.EdgeCutoff {
				img.Pix[i+3] = 0
				removed++
			}
		}
	}
	return removed
}

// frameRunPass 横向、纵向扫描，长度超过 RunFraction 的连续可见浅色游程整段去掉。
// 可见性在 pass 开始时取快照，横向扫描去掉的像素不会打断纵向游程。
func frameRunPass(img *RasterImage, p Profile) int {
	w, h := img.Width, img.Height
	removed := 0

	visible := make([]bool, w*h)
	for i := range visible {
		visible[i] = img.Pix[i*4+3] != 0
	}

	rowLimit := p.RunFraction * float64(w)
	for y := 0; y < h; y++ {
		removed += scanRuns(img, visible, w, rowLimit, p.FrameThreshold, func(k int) int {
			return y*w + k
		})
	}

	colLimit := p.RunFraction * float64(h)
	for x := 0; x < w; x++ {
		removed += scanRuns(img, visible, h, colLimit, p.FrameThreshold, func(k int) int {
			return k*w + x
		})
	}
	return removed
}

// scanRuns 沿一条扫描线走 n 个像素，index(k) 给出第 k 个像素的下标
func scanRuns(img *RasterImage, visible []bool, n int, limit float64, threshold int, index func(int) int) int {
	removed := 0
	start := -1
	for k := 0; k <= n; k++ {
		if k < n && visible[index(k)] && isLight(img.Pix, index(k)*4, threshold) {
			if start < 0 {
				start = k
			}
			continue
		}
		if start >= 0 && float64(k-start) > limit {
			for j := start; j < k; j++ {
				if a := index(j)*4 + 3; img.Pix[a] != 0 {
					img.Pix[a] = 0
					removed++
				}
			}
		}
		start = -1
	}
	return removed
}
