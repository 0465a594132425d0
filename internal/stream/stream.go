// Package stream implements the Streaming Layer (spec.md §4.6): a
// Server-Sent Events surface for a "products" query whose result set may be
// too large to buffer into a single response body.
//
// Grounded on the teacher's internal/rpc/http_sse.go: http.Flusher-driven
// writes, a keepalive ticker, and context-cancellation-driven shutdown. The
// teacher's event types (mutation create/update/delete) don't apply here —
// this layer streams one query's result set, not a live event bus — so the
// frame vocabulary is spec.md's own: start, product, end, error.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bimatlas/core/internal/types"
)

const keepaliveInterval = 15 * time.Second

type startFrame struct {
	Total int `json:"total"`
}

type productFrame struct {
	Current int           `json:"current"`
	Product types.Product `json:"product"`
}

type endFrame struct{}

type errorFrame struct {
	Message string `json:"message"`
}

// Products writes an SSE stream framed exactly as spec.md §4.6 specifies:
// a "start" event carrying the total row count, one "product" event per row
// in query order, then "end" — or "error" in place of "end" if iteration
// fails partway through. products is consumed lazily so memory use stays
// bounded by one row at a time regardless of result size (spec.md §4.6:
// "back-pressure: write one product event per row, flushing after each,
// rather than materializing the whole result set before writing").
func Products(ctx context.Context, w http.ResponseWriter, log *zap.Logger, total int, products iter.Seq2[types.Product, error]) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "start", startFrame{Total: total}); err != nil {
		return err
	}
	flusher.Flush()

	// A single goroutine owns every write to w: concurrent writers on one
	// http.ResponseWriter are unsafe, so the keepalive is interleaved inline
	// (checked against elapsed time) rather than driven by a second goroutine
	// racing the row loop, unlike the teacher's select-over-ticker-and-channel
	// shape, which only works there because NATS delivery is itself the
	// second goroutine's only writer.
	lastWrite := time.Now()
	current := 0
	for p, iterErr := range products {
		if err := ctx.Err(); err != nil {
			return err
		}
		if iterErr != nil {
			log.Warn("product stream ended with error", zap.Error(iterErr))
			_ = writeEvent(w, "error", errorFrame{Message: iterErr.Error()})
			flusher.Flush()
			return iterErr
		}

		if time.Since(lastWrite) >= keepaliveInterval {
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
			lastWrite = time.Now()
		}

		current++
		if err := writeEvent(w, "product", productFrame{Current: current, Product: p}); err != nil {
			return err
		}
		flusher.Flush()
		lastWrite = time.Now()
	}

	if err := writeEvent(w, "end", endFrame{}); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
