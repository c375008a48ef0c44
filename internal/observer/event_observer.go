package observer

import (
	"context"
	"sync"
	"time"

	"go-shelf-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

// ShelfEvent represents an analysis or alert event
type ShelfEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	AnalysisID     string                 `json:"analysis_id,omitempty"`
	ImageRef       string                 `json:"image_ref,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time,omitempty"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	AlertID        uint                   `json:"alert_id,omitempty"`
	AlertType      models.AlertType       `json:"alert_type,omitempty"`
	ProductType    string                 `json:"product_type,omitempty"`
	ProductID      *uint                  `json:"product_id,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of shelf event
type EventType string

const (
	// AnalysisStarted when analysis begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when analysis finishes successfully
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when analysis fails
	AnalysisFailed EventType = "analysis_failed"
	// AlertRaised when an alert is stored
	AlertRaised EventType = "alert_raised"
	// AlertResolved when an operator resolves an alert
	AlertResolved EventType = "alert_resolved"
	// StockLow when a stock update falls below the minimum
	StockLow EventType = "stock_low"
)

// IsAlert reports whether t concerns an alert rather than an analysis run.
func (t EventType) IsAlert() bool {
	return t == AlertRaised || t == AlertResolved || t == StockLow
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ShelfEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ShelfEvent)
}

// LoggingObserver logs shelf events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles shelf events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ShelfEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
	}
	if event.AnalysisID != "" {
		fields["analysis_id"] = event.AnalysisID
		fields["image_ref"] = event.ImageRef
	}
	if event.ProcessingTime > 0 {
		fields["processing_time_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.EventType.IsAlert() {
		fields["alert_id"] = event.AlertID
		fields["alert_type"] = event.AlertType
		fields["product_type"] = event.ProductType
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Debug("Shelf analysis started")
	case AnalysisCompleted:
		entry.Info("Shelf analysis completed")
	case AnalysisFailed:
		entry.Error("Shelf analysis failed")
	case AlertRaised:
		entry.Warn(event.Message)
	case StockLow:
		entry.Warn(event.Message)
	case AlertResolved:
		entry.Info("Alert resolved")
	default:
		entry.Info("Shelf event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of MetricsObserver counters.
type Metrics struct {
	TotalAnalyses        int64   `json:"total_analyses"`
	SuccessfulAnalyses   int64   `json:"successful_analyses"`
	FailedAnalyses       int64   `json:"failed_analyses"`
	AlertsRaised         int64   `json:"alerts_raised"`
	AlertsResolved       int64   `json:"alerts_resolved"`
	LowStockEvents       int64   `json:"low_stock_events"`
	AvgProcessingTimeSec float64 `json:"avg_processing_time_sec"`
}

// MetricsObserver collects metrics from shelf events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	alertsRaised        int64
	alertsResolved      int64
	lowStock            int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles shelf events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ShelfEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
	case AnalysisFailed:
		o.failedAnalyses++
	case AlertRaised:
		o.alertsRaised++
	case AlertResolved:
		o.alertsResolved++
	case StockLow:
		o.lowStock++
		o.alertsRaised++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := Metrics{
		TotalAnalyses:      o.totalAnalyses,
		SuccessfulAnalyses: o.successfulAnalyses,
		FailedAnalyses:     o.failedAnalyses,
		AlertsRaised:       o.alertsRaised,
		AlertsResolved:     o.alertsResolved,
		LowStockEvents:     o.lowStock,
	}
	if o.successfulAnalyses > 0 {
		m.AvgProcessingTimeSec = (o.totalProcessingTime / time.Duration(o.successfulAnalyses)).Seconds()
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

func (p *EventPublisher) snapshot() []Observer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	return observers
}

// NotifyObservers notifies all observers concurrently. Request cancellation
// does not reach observers; use Wait to drain them on shutdown.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ShelfEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	ctx = context.WithoutCancel(ctx)
	for _, observer := range p.snapshot() {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			notify(ctx, obs, event)
		}(observer)
	}
}

// NotifySync delivers event to every observer before returning.
func (p *EventPublisher) NotifySync(ctx context.Context, event ShelfEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, observer := range p.snapshot() {
		notify(ctx, observer, event)
	}
}

// Wait blocks until asynchronous notifications have been delivered.
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}

func notify(ctx context.Context, obs Observer, event ShelfEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
