// Package imgx 把缓存的影片海报转换为通知图标。
package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // 海报不一定总是 jpeg
)

// SquareIconJPEG 从海报中裁出居中的正方形并缩放到 size×size，编码为 JPEG。
//
// 约束：
// - 输入允许是 JPEG/PNG
// - 裁切：边长取 min(w, h)，居中
// - 缩放：最近邻（图标尺寸很小，不需要插值）
func SquareIconJPEG(poster []byte, size int) ([]byte, error) {
	if len(poster) == 0 {
		return nil, errors.New("海报为空")
	}
	if size <= 0 {
		return nil, errors.New("图标尺寸无效")
	}

	img, _, err := image.Decode(bytes.NewReader(poster))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2

	sq := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(sq, sq.Bounds(), img, image.Pt(x0, y0), draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		sy := y * side / size
		for x := 0; x < size; x++ {
			dst.Set(x, y, sq.At(x*side/size, sy))
		}
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
