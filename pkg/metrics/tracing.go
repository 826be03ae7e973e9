package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Trace times a unit of work and, when ctx carries a New Relic transaction,
// mirrors it as a segment named "<component> <method>".
type Trace struct {
	start time.Time
	txn   *newrelic.Transaction
	seg   *newrelic.Segment
}

func StartTrace(ctx context.Context, component, method string) *Trace {
	t := &Trace{start: time.Now()}

	if txn := newrelic.FromContext(ctx); txn != nil {
		t.txn = txn
		t.seg = txn.StartSegment(component + " " + method)
	}
	return t
}

// AddAttributes attaches metadata to the segment.
func (t *Trace) AddAttributes(attributes map[string]interface{}) {
	if t.seg == nil {
		return
	}
	for key, value := range attributes {
		t.seg.AddAttribute(key, value)
	}
}

// Fail reports err against the enclosing transaction.
func (t *Trace) Fail(err error) {
	if t.txn == nil || err == nil {
		return
	}
	t.txn.NoticeError(err)
}

// Elapsed is the time since the trace started.
func (t *Trace) Elapsed() time.Duration {
	return time.Since(t.start)
}

// End closes the segment. Calling it more than once is harmless.
func (t *Trace) End() {
	if t.seg == nil {
		return
	}
	t.seg.End()
	t.seg = nil
}
