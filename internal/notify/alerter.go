// Package notify evaluates target-price alerts after successful
// checks and dispatches them to a pluggable sink.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// Alert describes a target price being reached.
type Alert struct {
	TargetID     int64
	TargetName   string
	URL          string
	CurrentPrice int64
	TargetPrice  int64
	Message      string
	FiredAt      time.Time
}

// Sink delivers alerts. Delivery failures are reported but never fail
// the crawl that produced them.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Send logs the alert at info level.
func (s *LogSink) Send(_ context.Context, alert Alert) error {
	s.logger.Info("price alert",
		zap.Int64("target_id", alert.TargetID),
		zap.String("target_name", alert.TargetName),
		zap.Int64("current_price", alert.CurrentPrice),
		zap.Int64("target_price", alert.TargetPrice),
		zap.String("message", alert.Message),
	)
	return nil
}

// Alerter checks whether an extracted price crossed a target's
// threshold and fires at most one alert per check.
type Alerter struct {
	sink   Sink
	logger *zap.Logger
}

// NewAlerter creates an Alerter over the given sink.
func NewAlerter(sink Sink, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{sink: sink, logger: logger}
}

// Check fires an alert when the product is available and its current
// price is at or below the target price. Targets without a target
// price never alert.
func (a *Alerter) Check(ctx context.Context, target crawler.Target, product crawler.Product) {
	if target.TargetPrice == nil || product.Price == nil {
		return
	}
	if !product.Available {
		return
	}
	current := *product.Price
	goal := *target.TargetPrice
	if current > goal {
		return
	}

	alert := Alert{
		TargetID:     target.ID,
		TargetName:   target.Name,
		URL:          target.URL,
		CurrentPrice: current,
		TargetPrice:  goal,
		Message:      fmt.Sprintf("목표가 달성! %s 현재가 %d원 (목표가 %d원)", target.Name, current, goal),
		FiredAt:      time.Now().UTC(),
	}
	if err := a.sink.Send(ctx, alert); err != nil {
		a.logger.Warn("alert delivery failed",
			zap.Int64("target_id", target.ID),
			zap.Error(err),
		)
	}
}
