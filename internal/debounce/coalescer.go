// Package debounce merges bursts of messages from the same customer into a
// single downstream call.
package debounce

import (
	"cafe_bot/internal/models"
	"cafe_bot/internal/monitoring"
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultInterval is how long a submission waits for follow-up messages.
const DefaultInterval = 2 * time.Second

type Processor interface {
	Process(ctx context.Context, customerID, message string) (*models.ChatResponse, error)
}

// Coalescer buffers messages per customer. Each customer has its own window and
// lock, so customers never contend with each other.
type Coalescer struct {
	processor Processor
	interval  time.Duration
	windows   sync.Map // customer id -> *window
}

// window is a customer's pending burst. latest is a generation counter: every
// submission bumps it and only the holder of the final value processes the burst.
type window struct {
	mu     sync.Mutex
	buffer []string
	latest uint64
}

func NewCoalescer(processor Processor, interval time.Duration) *Coalescer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coalescer{processor: processor, interval: interval}
}

func (c *Coalescer) window(customerID string) *window {
	if w, ok := c.windows.Load(customerID); ok {
		return w.(*window)
	}
	w, _ := c.windows.LoadOrStore(customerID, &window{})
	return w.(*window)
}

// Submit adds text to the customer's burst and waits the debounce interval.
// A submission superseded during the wait returns a coalesced response; the
// last one joins the burst and hands it to the processor.
func (c *Coalescer) Submit(ctx context.Context, customerID, text string) (*models.ChatResponse, error) {
	w := c.window(customerID)

	w.mu.Lock()
	w.buffer = append(w.buffer, text)
	w.latest++
	token := w.latest
	w.mu.Unlock()

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// The buffered text stays for the customer's next submission.
		monitoring.DebounceSubmissions.WithLabelValues("aborted").Inc()
		return nil, ctx.Err()
	case <-timer.C:
	}

	w.mu.Lock()
	if w.latest != token {
		w.mu.Unlock()
		monitoring.DebounceSubmissions.WithLabelValues("coalesced").Inc()
		return models.CoalescedResponse(), nil
	}
	message := strings.Join(w.buffer, " ")
	w.buffer = nil
	w.mu.Unlock()

	monitoring.DebounceSubmissions.WithLabelValues("processed").Inc()
	return c.processor.Process(ctx, customerID, message)
}

// Pending returns how many messages are buffered for the customer.
func (c *Coalescer) Pending(customerID string) int {
	v, ok := c.windows.Load(customerID)
	if !ok {
		return 0
	}
	w := v.(*window)
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
