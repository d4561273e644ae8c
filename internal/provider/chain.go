package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/metrics"
	"github.com/fleveque/restaurant-images/internal/model"
	"github.com/fleveque/restaurant-images/internal/requestid"
)

// CallRecorder persists provider call records. storage.ProviderCallRepository
// satisfies it.
type CallRecorder interface {
	Create(ctx context.Context, call *model.ProviderCall) error
}

// Chain tries providers in order and returns the first non-empty result set.
// The first provider's results are tagged Primary, any later one's Secondary.
type Chain struct {
	providers []Provider
	recorder  CallRecorder // may be nil
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewChain builds a chain over providers, primary first. recorder and m may be nil.
func NewChain(providers []Provider, recorder CallRecorder, m *metrics.Metrics, logger *zap.Logger) *Chain {
	return &Chain{
		providers: providers,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
	}
}

// Providers returns the providers in chain order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// Search never returns an error. Every failure kind moves on to the next
// provider; when none produce results the returned slice is empty and the
// caller pads from the fallback catalog.
func (c *Chain) Search(ctx context.Context, query string, start int) []model.ImageResult {
	ctx, reqID := requestid.Ensure(ctx)

	for i, p := range c.providers {
		results, err := c.attempt(ctx, reqID, p, query, start)
		if err == nil {
			source := model.SourceSecondary
			if i == 0 {
				source = model.SourcePrimary
			}
			tagged := make([]model.ImageResult, 0, len(results))
			for _, r := range results {
				if !r.Usable() {
					continue
				}
				tagged = append(tagged, r.WithSource(source))
			}
			if len(tagged) > 0 {
				if i > 0 {
					c.logger.Info("served by fallback provider",
						zap.String("provider", p.Name()),
						zap.String("query", query),
						zap.Int("results", len(tagged)),
					)
				}
				return tagged
			}
			err = newError(p.Name(), KindNoResults, 0, nil)
		}

		c.logFailure(p, query, err)

		if ctx.Err() != nil {
			break
		}
	}

	return []model.ImageResult{}
}

func (c *Chain) attempt(ctx context.Context, reqID string, p Provider, query string, start int) ([]model.ImageResult, error) {
	begin := time.Now()
	results, err := p.Search(ctx, query, start)
	elapsed := time.Since(begin)

	outcome := model.OutcomeOK
	if err != nil {
		outcome = string(KindOf(err))
	}
	c.metrics.RecordProviderRequest(p.Name(), outcome, elapsed.Seconds())

	// Unconfigured providers make no call, so there is nothing to audit.
	if KindOf(err) != KindConfigMissing || StatusOf(err) != 0 {
		c.record(ctx, &model.ProviderCall{
			RequestID:   reqID,
			Provider:    p.Name(),
			Query:       query,
			Outcome:     outcome,
			StatusCode:  StatusOf(err),
			ResultCount: len(results),
			DurationMs:  elapsed.Milliseconds(),
		})
	}

	return results, err
}

func (c *Chain) record(ctx context.Context, call *model.ProviderCall) {
	if c.recorder == nil {
		return
	}
	// Audit writes must not be cut short by a caller that already has its answer.
	if err := c.recorder.Create(context.WithoutCancel(ctx), call); err != nil {
		c.logger.Error("recording provider call", zap.Error(err))
	}
}

func (c *Chain) logFailure(p Provider, query string, err error) {
	fields := []zap.Field{
		zap.String("provider", p.Name()),
		zap.String("kind", string(KindOf(err))),
		zap.String("query", query),
	}
	switch KindOf(err) {
	case KindConfigMissing:
		c.logger.Debug("provider not configured, skipping", fields...)
	case KindTransport:
		c.logger.Warn("provider transport error", append(fields, zap.Error(err))...)
	default:
		c.logger.Info("provider returned nothing usable", append(fields, zap.Error(err))...)
	}
}
