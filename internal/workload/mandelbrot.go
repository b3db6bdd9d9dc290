package workload

import "math/bits"

const (
	mandelbrotWidth   = 4000
	mandelbrotMaxIter = 50
)

// runMandelbrot renders the requested number of rows of a fixed-width
// Mandelbrot band, one bit per pixel.
func runMandelbrot(rows int) error {
	var inside int64
	for y := 0; y < rows; y++ {
		row := mandelbrotRow(y % mandelbrotWidth)
		for _, b := range row {
			inside += int64(bits.OnesCount8(b))
		}
	}
	Sink.Add(inside)
	return nil
}

func mandelbrotRow(y int) []byte {
	row := make([]byte, (mandelbrotWidth+7)/8)
	scale := 2.0 / float64(mandelbrotWidth)
	ci := float64(y)*scale - 1.0

	for x := 0; x < mandelbrotWidth; x++ {
		cr := float64(x)*scale - 1.5
		zr, zi := cr, ci

		inside := true
		for i := 0; i < mandelbrotMaxIter; i++ {
			zr2, zi2 := zr*zr, zi*zi
			if zr2+zi2 > 4.0 {
				inside = false
				break
			}
			zi = 2.0*zr*zi + ci
			zr = zr2 - zi2 + cr
		}

		if inside {
			row[x/8] |= 128 >> (x % 8)
		}
	}
	return row
}
