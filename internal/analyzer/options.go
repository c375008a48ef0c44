package analyzer

import "go-shelf-inspector/internal/preprocess"

// AnalysisOptions configures a ShelfAnalyzer.
type AnalysisOptions struct {
	// DetailedMode keeps the raw OCR text of every box in the result.
	DetailedMode bool

	// SkipQualityCheck disables the photo focus/exposure assessment.
	SkipQualityCheck bool
	Quality          preprocess.QualityThresholds

	// Performance options
	UseWorkerPool bool
	MaxWorkers    int
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		DetailedMode:  false,
		Quality:       preprocess.DefaultQualityThresholds(),
		UseWorkerPool: true,
		MaxWorkers:    0, // Use default CPU count
	}
}

// DetailedOptions returns options for the detailed dashboard view
func DetailedOptions() AnalysisOptions {
	return DefaultOptions().WithDetail()
}

// WithDetail keeps raw OCR text per box
func (opts AnalysisOptions) WithDetail() AnalysisOptions {
	opts.DetailedMode = true
	return opts
}

// WithWorkers sets the worker count; zero means one per CPU
func (opts AnalysisOptions) WithWorkers(n int) AnalysisOptions {
	if n < 0 {
		n = 0
	}
	opts.MaxWorkers = n
	opts.UseWorkerPool = true
	return opts
}

// Sequential processes boxes one after another on the calling goroutine
func (opts AnalysisOptions) Sequential() AnalysisOptions {
	opts.UseWorkerPool = false
	return opts
}

// WithoutQualityCheck disables the photo quality assessment
func (opts AnalysisOptions) WithoutQualityCheck() AnalysisOptions {
	opts.SkipQualityCheck = true
	return opts
}
