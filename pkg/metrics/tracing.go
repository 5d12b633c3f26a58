package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer times a method call as a segment of the transaction in its
// context. The nil tracer returned outside of a transaction is safe to use.
type MethodTracer struct {
	txn     *newrelic.Transaction
	segment *newrelic.Segment
}

// TraceMethodCall starts a segment named "<structOrPackageName> <methodName>".
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	if txn := newrelic.FromContext(ctx); txn != nil {
		return &MethodTracer{
			txn:     txn,
			segment: txn.StartSegment(structOrPackageName + " " + methodName),
		}
	}
	return nil
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t != nil {
		t.segment.AddAttribute(key, value)
	}
}

// OnError notices err on the transaction and tags the segment with it.
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	t.segment.AddAttribute("error", err.Error())
	t.txn.NoticeError(err)
}

func (t *MethodTracer) End() {
	if t != nil {
		t.segment.End()
	}
}
