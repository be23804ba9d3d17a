package tracing

import (
	"context"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// shutdownTimeout bounds the final flush to New Relic
const shutdownTimeout = 10 * time.Second

// Tracer records service segments under HTTP requests (via nrgin) and under
// background jobs started with StartBackground
type Tracer interface {
	StartSegment(ctx context.Context, name string) *newrelic.Segment
	StartBackground(ctx context.Context, name string) (context.Context, func(err error))
	Application() *newrelic.Application
	Close()
}

type newRelicTracer struct {
	app *newrelic.Application
}

// NewTracer connects to New Relic. Without a license key it returns a
// tracer that records nothing.
func NewTracer(cfg config.TracingConfig) (Tracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return Noop(), nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &newRelicTracer{app: app}, nil
}

// Noop returns a tracer that records nothing
func Noop() Tracer {
	return &newRelicTracer{}
}

// StartSegment opens a segment on the transaction carried by ctx. Without
// one the returned segment is inert; End is always safe.
func (t *newRelicTracer) StartSegment(ctx context.Context, name string) *newrelic.Segment {
	txn := newrelic.FromContext(ctx)
	if t.app == nil || txn == nil {
		return &newrelic.Segment{}
	}
	return txn.StartSegment(name)
}

// StartBackground opens a non-web transaction for a scheduled job or CLI
// run and stores it in the returned context so service segments attach to
// it. The returned func notes err, if any, and ends the transaction.
func (t *newRelicTracer) StartBackground(ctx context.Context, name string) (context.Context, func(err error)) {
	if t.app == nil {
		return ctx, func(error) {}
	}

	txn := t.app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), func(err error) {
		if err != nil {
			txn.NoticeError(err)
		}
		txn.End()
	}
}

// Application returns the agent application for nrgin, nil when disabled
func (t *newRelicTracer) Application() *newrelic.Application {
	return t.app
}

// Close flushes pending data
func (t *newRelicTracer) Close() {
	if t.app == nil {
		return
	}
	t.app.Shutdown(shutdownTimeout)
	log.Info().Msg("New Relic tracer shut down")
}
