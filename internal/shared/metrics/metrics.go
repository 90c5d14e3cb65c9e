package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	dispatchStartedTotal  atomic.Uint64
	dispatchAcceptedTotal atomic.Uint64
	dispatchFailedTotal   atomic.Uint64

	webhookReceivedTotal  atomic.Uint64
	webhookRejectedTotal  atomic.Uint64
	webhookDuplicateTotal atomic.Uint64
	resultsPersistedTotal atomic.Uint64

	dispatchJobsReceivedTotal            atomic.Uint64
	dispatchJobsCompletedTotal           atomic.Uint64
	dispatchJobsFailedTotal              atomic.Uint64
	dispatchJobsDeletedUnrecoverableTotal atomic.Uint64

	dispatchDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncDispatchStarted increments the dispatch started counter.
func IncDispatchStarted() {
	dispatchStartedTotal.Add(1)
}

// IncDispatchAccepted increments the counter of dispatches acknowledged by the
// analysis service.
func IncDispatchAccepted() {
	dispatchAcceptedTotal.Add(1)
}

// IncDispatchFailed increments the dispatch failed counter.
func IncDispatchFailed() {
	dispatchFailedTotal.Add(1)
}

// IncWebhookReceived increments the inbound webhook counter.
func IncWebhookReceived() {
	webhookReceivedTotal.Add(1)
}

// IncWebhookRejected increments the rejected webhook counter (auth or validation).
func IncWebhookRejected() {
	webhookRejectedTotal.Add(1)
}

// IncWebhookDuplicate increments the duplicate result delivery counter.
func IncWebhookDuplicate() {
	webhookDuplicateTotal.Add(1)
}

// IncResultsPersisted increments the persisted results counter.
func IncResultsPersisted() {
	resultsPersistedTotal.Add(1)
}

// IncDispatchJobsReceived counts queue messages received by the worker.
func IncDispatchJobsReceived() {
	dispatchJobsReceivedTotal.Add(1)
}

// IncDispatchJobsCompleted counts queue messages processed and deleted.
func IncDispatchJobsCompleted() {
	dispatchJobsCompletedTotal.Add(1)
}

// IncDispatchJobsFailed counts queue messages left for redelivery.
func IncDispatchJobsFailed() {
	dispatchJobsFailedTotal.Add(1)
}

// IncDispatchJobsDeletedUnrecoverable counts malformed messages dropped.
func IncDispatchJobsDeletedUnrecoverable() {
	dispatchJobsDeletedUnrecoverableTotal.Add(1)
}

// ObserveDispatchDurationMs records an outbound dispatch duration in milliseconds.
func ObserveDispatchDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	dispatchDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "dispatch_started_total", "Total classification dispatches started", dispatchStartedTotal.Load())
	writeCounter(&buf, "dispatch_accepted_total", "Total dispatches acknowledged by the analysis service", dispatchAcceptedTotal.Load())
	writeCounter(&buf, "dispatch_failed_total", "Total dispatches failed", dispatchFailedTotal.Load())
	writeCounter(&buf, "webhook_received_total", "Total inbound webhook deliveries", webhookReceivedTotal.Load())
	writeCounter(&buf, "webhook_rejected_total", "Total rejected webhook deliveries", webhookRejectedTotal.Load())
	writeCounter(&buf, "webhook_duplicate_total", "Total duplicate result deliveries", webhookDuplicateTotal.Load())
	writeCounter(&buf, "results_persisted_total", "Total classification results persisted", resultsPersistedTotal.Load())
	writeCounter(&buf, "dispatch_jobs_received_total", "Total queue messages received", dispatchJobsReceivedTotal.Load())
	writeCounter(&buf, "dispatch_jobs_completed_total", "Total queue messages completed", dispatchJobsCompletedTotal.Load())
	writeCounter(&buf, "dispatch_jobs_failed_total", "Total queue messages failed", dispatchJobsFailedTotal.Load())
	writeCounter(&buf, "dispatch_jobs_deleted_unrecoverable_total", "Total malformed queue messages dropped", dispatchJobsDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "dispatch_duration_ms", "Outbound dispatch duration in milliseconds", dispatchDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
