package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"go-shelf-inspector/internal/config"
	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/locator"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/internal/preprocess"
	"go-shelf-inspector/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// shelfAnalyzer implements ShelfAnalyzer. It holds no per-call state: the
// catalog is immutable and crops are pooled in-memory buffers.
type shelfAnalyzer struct {
	catalog   *config.Catalog
	locator   locator.Locator
	extractor ProductExtractor
	quality   *preprocess.QualityChecker
	options   AnalysisOptions
	pool      *WorkerPool

	cropPool      sync.Pool
	cropsInFlight atomic.Int64
	now           func() time.Time
}

// NewShelfAnalyzer wires an analyzer from its collaborators.
func NewShelfAnalyzer(catalog *config.Catalog, loc locator.Locator, ext ProductExtractor, options AnalysisOptions) (ShelfAnalyzer, error) {
	return newShelfAnalyzer(catalog, loc, ext, options)
}

func newShelfAnalyzer(catalog *config.Catalog, loc locator.Locator, ext ProductExtractor, options AnalysisOptions) (*shelfAnalyzer, error) {
	if catalog == nil || loc == nil || ext == nil {
		return nil, errors.New("analyzer: catalog, locator and extractor are required")
	}
	a := &shelfAnalyzer{
		catalog:   catalog,
		locator:   loc,
		extractor: ext,
		quality:   preprocess.NewQualityChecker(options.Quality),
		options:   options,
		cropPool: sync.Pool{
			New: func() interface{} {
				return &image.NRGBA{}
			},
		},
		now: time.Now,
	}
	if options.UseWorkerPool {
		a.pool = NewWorkerPool(options.MaxWorkers)
		a.pool.Start()
	}
	return a, nil
}

// AnalyzeFile implements ShelfAnalyzer.
func (a *shelfAnalyzer) AnalyzeFile(ctx context.Context, path string) (*models.ShelfAnalysisResult, error) {
	img, err := preprocess.Load(path)
	if err != nil {
		logger.WithError(err).WithField("image_ref", path).Warn("Shelf photo could not be loaded")
		return nil, err
	}
	return a.AnalyzeImage(ctx, path, img)
}

// AnalyzeImage implements ShelfAnalyzer.
func (a *shelfAnalyzer) AnalyzeImage(ctx context.Context, ref string, img image.Image) (*models.ShelfAnalysisResult, error) {
	start := a.now()
	id := uuid.New().String()
	log := logger.WithFields(logrus.Fields{
		"analysis_id": id,
		"image_ref":   ref,
	})

	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.NewImageLoadError(ref, errors.New("image is empty"))
	}

	boxes, err := a.locator.Locate(ctx, img)
	if err != nil {
		log.WithError(err).Error("Object detection failed")
		return nil, wrapContextError(ctx, "object detection failed", err)
	}

	products := a.processBoxes(ctx, img, boxes, log)
	if err := ctx.Err(); err != nil {
		return nil, wrapContextError(ctx, "analysis interrupted", err)
	}

	detectedTypes, detected := collectTypes(products)
	missing := MissingTypes(a.catalog.ExpectedProducts(), detected)
	alerts := make([]models.AnalysisAlert, 0, len(missing))
	for _, productType := range missing {
		alerts = append(alerts, models.AnalysisAlert{
			Type:        models.AlertMissingProduct,
			Message:     models.MissingProductMessage(productType),
			ProductType: productType,
		})
	}

	bounds := img.Bounds()
	result := &models.ShelfAnalysisResult{
		ID:            id,
		ImageRef:      ref,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Products:      products,
		DetectedTypes: detectedTypes,
		Alerts:        alerts,
		Coverage:      Coverage(boxes, bounds),
	}
	if !a.options.SkipQualityCheck {
		result.Quality = a.quality.Assess(preprocess.ToGray(img))
	}

	finished := a.now()
	result.Timestamp = finished
	result.ProcessingTimeSec = finished.Sub(start).Seconds()

	log.WithFields(logrus.Fields{
		"boxes":              len(boxes),
		"failed_boxes":       result.FailedBoxes(),
		"detected_types":     len(detectedTypes),
		"missing_types":      len(missing),
		"coverage":           result.Coverage,
		"processing_time_ms": finished.Sub(start).Milliseconds(),
	}).Info("Shelf analysis completed")

	return result, nil
}

// Close releases the worker pool.
func (a *shelfAnalyzer) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// processBoxes extracts every box. The output order equals the box order no
// matter how jobs are scheduled.
func (a *shelfAnalyzer) processBoxes(ctx context.Context, img image.Image, boxes []models.BoundingBox, log *logrus.Entry) []models.DetectedProduct {
	products := make([]models.DetectedProduct, len(boxes))
	if a.pool == nil || len(boxes) < 2 {
		for i, box := range boxes {
			products[i] = a.processBox(ctx, img, i, box, log)
		}
		return products
	}

	var wg sync.WaitGroup
	for i, box := range boxes {
		i, box := i, box
		wg.Add(1)
		job := func() {
			defer wg.Done()
			products[i] = a.processBox(ctx, img, i, box, log)
		}
		if !a.pool.Submit(job) {
			job()
		}
	}
	wg.Wait()
	return products
}

// processBox crops and extracts a single box. Failures are recorded on the
// returned product instead of aborting the analysis.
func (a *shelfAnalyzer) processBox(ctx context.Context, img image.Image, index int, box models.BoundingBox, log *logrus.Entry) (dp models.DetectedProduct) {
	dp = models.DetectedProduct{Index: index, BBox: box}
	boxLog := log.WithFields(logrus.Fields{"box_index": index, "bbox": box.String()})

	defer func() {
		if r := recover(); r != nil {
			dp.Info = models.ProductInfo{}
			dp.RawText = ""
			dp.Error = fmt.Sprintf("extraction panicked: %v", r)
			boxLog.WithField("panic", r).Error("Box extraction panicked")
		}
	}()

	bounds := img.Bounds()
	rect := box.Rect().Add(bounds.Min).Intersect(bounds)
	if !box.Valid() || rect.Empty() {
		dp.Error = "bounding box is empty or outside the image"
		boxLog.Warn("Skipping invalid bounding box")
		return dp
	}

	crop, release := a.crop(img, rect)
	defer release()

	info, raw, err := a.extractor.Extract(ctx, crop)
	if err != nil {
		dp.Error = err.Error()
		boxLog.WithError(err).Warn("Box extraction failed")
		return dp
	}
	dp.Info = info
	if a.options.DetailedMode {
		dp.RawText = raw
	}
	return dp
}

// crop copies rect into a pooled buffer. release must be called exactly once.
func (a *shelfAnalyzer) crop(img image.Image, rect image.Rectangle) (*image.NRGBA, func()) {
	buf := a.cropPool.Get().(*image.NRGBA)
	w, h := rect.Dx(), rect.Dy()
	n := 4 * w * h
	if cap(buf.Pix) < n {
		buf.Pix = make([]uint8, n)
	}
	buf.Pix = buf.Pix[:n]
	buf.Stride = 4 * w
	buf.Rect = image.Rect(0, 0, w, h)
	draw.Draw(buf, buf.Rect, img, rect.Min, draw.Src)

	a.cropsInFlight.Add(1)
	var once sync.Once
	return buf, func() {
		once.Do(func() {
			a.cropsInFlight.Add(-1)
			a.cropPool.Put(buf)
		})
	}
}

// collectTypes returns detected types in first-seen order plus the set.
func collectTypes(products []models.DetectedProduct) ([]string, map[string]struct{}) {
	set := make(map[string]struct{})
	ordered := make([]string, 0)
	for _, p := range products {
		if p.Info.Type == nil {
			continue
		}
		if _, ok := set[*p.Info.Type]; ok {
			continue
		}
		set[*p.Info.Type] = struct{}{}
		ordered = append(ordered, *p.Info.Type)
	}
	return ordered, set
}

// MissingTypes returns expected types absent from detected, in expected order.
// Detected types that are not expected are ignored.
func MissingTypes(expected []string, detected map[string]struct{}) []string {
	missing := make([]string, 0)
	seen := make(map[string]struct{}, len(expected))
	for _, t := range expected {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := detected[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Coverage is the summed area of boxes clipped to bounds divided by the image
// area, capped at 1. Overlapping boxes are counted twice.
func Coverage(boxes []models.BoundingBox, bounds image.Rectangle) float64 {
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return 0
	}
	var covered int
	for _, b := range boxes {
		r := b.Rect().Add(bounds.Min).Intersect(bounds)
		covered += r.Dx() * r.Dy()
	}
	ratio := float64(covered) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func wrapContextError(ctx context.Context, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(message, err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewProcessingError(message, err)
}
