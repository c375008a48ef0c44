package analyzer

import (
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.DetailedMode {
		t.Error("Expected DetailedMode to be false by default")
	}
	if !opts.UseWorkerPool {
		t.Error("Expected UseWorkerPool to be true by default")
	}
	if opts.MaxWorkers != 0 {
		t.Errorf("Expected MaxWorkers to be 0, got %d", opts.MaxWorkers)
	}
	if opts.Quality.MinLaplacianVariance != 100 {
		t.Errorf("Expected blur threshold 100, got %f", opts.Quality.MinLaplacianVariance)
	}
}

func TestOptionBuilders(t *testing.T) {
	base := DefaultOptions()

	if !DetailedOptions().DetailedMode {
		t.Error("Expected DetailedOptions to enable detail")
	}
	if w := base.WithWorkers(3); w.MaxWorkers != 3 || !w.UseWorkerPool {
		t.Errorf("Unexpected WithWorkers result %+v", w)
	}
	if w := base.WithWorkers(-2); w.MaxWorkers != 0 {
		t.Errorf("Expected negative workers to clamp to 0, got %d", w.MaxWorkers)
	}
	if base.Sequential().UseWorkerPool {
		t.Error("Expected Sequential to disable the pool")
	}
	if !base.WithoutQualityCheck().SkipQualityCheck {
		t.Error("Expected WithoutQualityCheck to skip quality")
	}
	if base.DetailedMode || !base.UseWorkerPool || base.SkipQualityCheck {
		t.Error("Builders must not mutate the receiver")
	}
}
