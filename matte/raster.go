package matte

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ErrInvalidImageBuffer 像素缓冲区长度与 width*height*4 不一致
var ErrInvalidImageBuffer = errors.New("invalid image buffer")

// RasterImage 行优先的 RGBA 像素缓冲，每像素 4 字节，非预乘 alpha
type RasterImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRasterImage 校验并包装已有的像素缓冲（不拷贝）
func NewRasterImage(width, height int, pix []uint8) (*RasterImage, error) {
	img := &RasterImage{Width: width, Height: height, Pix: pix}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate 检查 len(Pix) == Width*Height*4
func (img *RasterImage) Validate() error {
	if img == nil {
		return errors.Wrap(ErrInvalidImageBuffer, "nil image")
	}
	if img.Width < 0 || img.Height < 0 {
		return errors.Wrapf(ErrInvalidImageBuffer, "negative dimensions %dx%d", img.Width, img.Height)
	}
	// 先排除 Width*Height*4 溢出
	if img.Height > 0 && img.Width > math.MaxInt/4/img.Height {
		return errors.Wrapf(ErrInvalidImageBuffer, "dimensions %dx%d overflow", img.Width, img.Height)
	}
	if want := img.Width * img.Height * 4; len(img.Pix) != want {
		return errors.Wrapf(ErrInvalidImageBuffer, "buffer length %d, want %d (%dx%dx4)",
			len(img.Pix), want, img.Width, img.Height)
	}
	return nil
}

// FromImage 把任意解码后的图像转为 RasterImage
func FromImage(src image.Image) *RasterImage {
	n := toNRGBA(src)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		copy(pix[y*w*4:(y+1)*w*4], n.Pix[y*n.Stride:y*n.Stride+w*4])
	}
	return &RasterImage{Width: w, Height: h, Pix: pix}
}

// Image 返回共享同一缓冲的 *image.NRGBA，供编码器使用
func (img *RasterImage) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    img.Pix,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

func (img *RasterImage) Clone() *RasterImage {
	pix := make([]uint8, len(img.Pix))
	copy(pix, img.Pix)
	return &RasterImage{Width: img.Width, Height: img.Height, Pix: pix}
}

func (img *RasterImage) At(x, y int) (r, g, b, a uint8) {
	i := (y*img.Width + x) * 4
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
