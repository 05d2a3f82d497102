package services

import (
	"context"
	"livesync/internal/core/domain"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("livesync/services")

var (
	admittedCounter, _ = meter.Int64Counter("livesync.admission.admitted",
		metric.WithDescription("Messages admitted by a subscription's high-water mark"))
	rejectedCounter, _ = meter.Int64Counter("livesync.admission.rejected",
		metric.WithDescription("Messages dropped as duplicate, stale or out of order"))
)

// AdmissionFilter admits a message only if its timestamp is strictly newer
// than the last admitted one. Equal timestamps are rejected, so the first
// delivery wins. Stale deliveries are dropped, never buffered or reordered.
//
// One filter belongs to one subscription; LastSeen never decreases.
type AdmissionFilter struct {
	mu     sync.Mutex
	last   domain.Timestamp
	seen   bool
	roomID string
}

func NewAdmissionFilter(roomID string) *AdmissionFilter {
	return &AdmissionFilter{roomID: roomID}
}

// NewAdmissionFilterFrom resumes a filter at a known high-water mark.
func NewAdmissionFilterFrom(roomID string, last domain.Timestamp) *AdmissionFilter {
	return &AdmissionFilter{roomID: roomID, last: last, seen: !last.IsZero()}
}

func (f *AdmissionFilter) Admit(ts domain.Timestamp) bool {
	f.mu.Lock()
	ok := !f.seen || ts.Compare(f.last) > 0
	if ok {
		f.last = ts
		f.seen = true
	}
	f.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("room", f.roomID))
	if ok {
		admittedCounter.Add(context.Background(), 1, attrs)
	} else {
		rejectedCounter.Add(context.Background(), 1, attrs)
	}
	return ok
}

// LastSeen returns the high-water mark and whether anything was admitted yet.
func (f *AdmissionFilter) LastSeen() (domain.Timestamp, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.seen
}
