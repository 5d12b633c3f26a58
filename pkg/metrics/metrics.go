package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// NewContext returns a context carrying the New Relic application that the
// Record functions report to.
func NewContext(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, newRelicContextKey{}, app)
}

func FromContext(ctx context.Context) (*newrelic.Application, bool) {
	nr, ok := ctx.Value(newRelicContextKey{}).(*newrelic.Application)
	return nr, ok && nr != nil
}

// StartTransaction begins a transaction named after a CLI operation and
// returns a context carrying both it and the application. With a nil app the
// context is returned unchanged.
func StartTransaction(ctx context.Context, app *newrelic.Application, name string) (context.Context, func()) {
	if app == nil {
		return ctx, func() {}
	}

	txn := app.StartTransaction(name)
	return NewContext(newrelic.NewContext(ctx, txn), app), txn.End
}

func withApp(ctx context.Context, fn func(app *newrelic.Application)) {
	if app, ok := FromContext(ctx); ok {
		fn(app)
	}
}

func RecordCount(ctx context.Context, metricName string, count uint64) {
	withApp(ctx, func(app *newrelic.Application) {
		app.RecordCustomMetric(metricName, float64(count))
	})
}

// RecordDuration records the duration in milliseconds.
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	withApp(ctx, func(app *newrelic.Application) {
		app.RecordCustomMetric(metricName, float64(duration.Milliseconds()))
	})
}

// RecordEvent records a custom event, such as a submitted voucher
// transaction.
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	withApp(ctx, func(app *newrelic.Application) {
		app.RecordCustomEvent(eventName, kvPairs)
	})
}
