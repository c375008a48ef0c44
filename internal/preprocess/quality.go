package preprocess

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"go-shelf-inspector/pkg/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// QualityThresholds bound the photo quality checks.
type QualityThresholds struct {
	MinLaplacianVariance float64
	MinBrightness        float64
	MaxBrightness        float64
}

// DefaultQualityThresholds returns thresholds tuned for shelf photos.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 100,
		MinBrightness:        60,
		MaxBrightness:        220,
	}
}

// QualityChecker computes focus and exposure statistics of a photo.
type QualityChecker struct {
	thresholds QualityThresholds
	slicePool  sync.Pool
}

func NewQualityChecker(thresholds QualityThresholds) *QualityChecker {
	return &QualityChecker{
		thresholds: thresholds,
		slicePool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, 1024)
				return &s
			},
		},
	}
}

// Assess reports blur and exposure problems. The result is informational;
// analysis proceeds regardless.
func (q *QualityChecker) Assess(gray *image.Gray) models.PhotoQuality {
	res := models.PhotoQuality{
		LaplacianVariance: q.LaplacianVariance(gray),
		Brightness:        q.Brightness(gray),
	}
	res.Blurry = res.LaplacianVariance < q.thresholds.MinLaplacianVariance
	res.TooDark = res.Brightness < q.thresholds.MinBrightness
	res.TooBright = res.Brightness > q.thresholds.MaxBrightness

	if res.Blurry {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("photo looks blurry (laplacian variance %.1f < %.1f)", res.LaplacianVariance, q.thresholds.MinLaplacianVariance))
	}
	if res.TooDark {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("photo is too dark (brightness %.1f < %.1f)", res.Brightness, q.thresholds.MinBrightness))
	}
	if res.TooBright {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("photo is overexposed (brightness %.1f > %.1f)", res.Brightness, q.thresholds.MaxBrightness))
	}
	return res
}

// LaplacianVariance measures focus: the variance of the 4-neighbour Laplacian.
func (q *QualityChecker) LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	bufp := q.slicePool.Get().(*[]float64)
	data := (*bufp)[:0]
	defer func() {
		*bufp = data[:0]
		q.slicePool.Put(bufp)
	}()

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}
	return stat.Variance(data, nil)
}

// Brightness returns the mean gray level (0-255), computed in horizontal strips.
func (q *QualityChecker) Brightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	sums := make([]float64, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}
		wg.Add(1)
		go func(i, startY, endY int) {
			defer wg.Done()
			var total float64
			for y := startY; y < endY; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					total += float64(gray.GrayAt(x, y).Y)
				}
			}
			sums[i] = total
		}(i, startY, endY)
	}
	wg.Wait()

	return floats.Sum(sums) / float64(width*height)
}
