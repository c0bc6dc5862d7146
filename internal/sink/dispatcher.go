// Package sink implements component E: fire-and-forget delivery of
// normalized batches to the downstream Fleet API. Enqueuing a batch never
// blocks the socket read path; delivery happens on a bounded pool of
// worker goroutines independent of any session.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/404minds/telematics-gateway/internal/ingesterr"
	"github.com/404minds/telematics-gateway/internal/normalize"
	"github.com/404minds/telematics-gateway/internal/observability"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Batch is one (imei, records) unit of work handed from a session to the
// dispatcher.
type Batch struct {
	IMEI    string
	Records []normalize.Record
}

type wireBody struct {
	IMEI    string               `json:"imei"`
	Records []normalize.Record   `json:"records"`
}

// Dispatcher owns the bounded queue and worker pool that deliver batches to
// the Fleet API. Per the specification's backpressure recommendation, the
// queue drops the oldest queued batch rather than growing without bound or
// blocking the caller.
type Dispatcher struct {
	apiURL string
	secret string
	client *http.Client
	logger *zap.Logger

	queue chan Batch
	wg    sync.WaitGroup
}

// QueueDepth is the bounded capacity of the dispatch queue.
const QueueDepth = 1024

// Workers is the fixed size of the delivery worker pool.
const Workers = 8

// New builds a Dispatcher. Call Start to begin draining, and Stop to let
// in-flight deliveries finish within a grace window.
func New(apiURL, sharedSecret string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		apiURL: apiURL,
		secret: sharedSecret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		queue:  make(chan Batch, QueueDepth),
	}
}

// Start launches the worker pool. Safe to call once.
func (d *Dispatcher) Start() {
	d.wg.Add(Workers)
	for i := 0; i < Workers; i++ {
		go d.worker()
	}
}

// Enqueue hands a batch to the dispatcher without blocking the caller's
// read path. If the queue is full, the oldest queued batch is dropped to
// make room — enqueuing always succeeds from the caller's point of view.
func (d *Dispatcher) Enqueue(b Batch) {
	select {
	case d.queue <- b:
		return
	default:
	}
	// Queue full: drop the oldest and retry once. Best-effort — if a
	// worker drains concurrently this still makes room.
	select {
	case <-d.queue:
		observability.SinkQueueDropped.Inc()
	default:
	}
	select {
	case d.queue <- b:
	default:
		observability.SinkQueueDropped.Inc()
	}
}

// Stop closes the queue and waits up to grace for every worker to finish
// draining it.
func (d *Dispatcher) Stop(grace time.Duration) {
	close(d.queue)
	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(grace):
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for b := range d.queue {
		d.deliver(b)
	}
}

func (d *Dispatcher) deliver(b Batch) {
	body := wireBody{IMEI: b.IMEI, Records: b.Records}
	payload, err := json.Marshal(body)
	if err != nil {
		d.logger.Error("marshal sink batch failed", zap.String("imei", b.IMEI), zap.Error(err))
		observability.SinkFailed.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := d.apiURL + "/api/gps/ingest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("build sink request failed", zap.String("imei", b.IMEI), zap.Error(err))
		observability.SinkFailed.Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.secret)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("sink delivery failed", zap.String("imei", b.IMEI), zap.Error(ingesterr.SinkError(err)))
		observability.SinkFailed.Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := errors.Errorf("sink returned status %d", resp.StatusCode)
		d.logger.Warn("sink rejected batch", zap.String("imei", b.IMEI), zap.Error(ingesterr.SinkError(err)))
		observability.SinkFailed.Inc()
		return
	}

	observability.SinkDelivered.Inc()
}
