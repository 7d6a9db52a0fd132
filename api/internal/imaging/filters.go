package imaging

import "image"

// adaptiveThreshold binarises g against the mean of a window×window
// neighbourhood (clamped at the edges): p > mean-offset is white.
func adaptiveThreshold(g *image.Gray, window, offset int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	half := window / 2

	// integral image, (w+1)×(h+1)
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w-1, x+half)
			cnt := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]

			p := int64(g.Pix[y*g.Stride+x])
			if p*cnt > sum-int64(offset)*cnt {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// despeckle flips pixels that have no 8-neighbour of the same colour.
// Strokes one pixel wide keep their neighbours along the stroke and survive.
func despeckle(g *image.Gray) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	src := make([]uint8, len(g.Pix))
	copy(src, g.Pix)

	at := func(x, y int) uint8 { return src[y*g.Stride+x] }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := at(x, y)
			same := false
			for dy := -1; dy <= 1 && !same; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if at(nx, ny) == p {
						same = true
						break
					}
				}
			}
			if !same {
				g.Pix[y*g.Stride+x] = 255 - p
			}
		}
	}
}
