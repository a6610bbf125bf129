package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/infra"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/metrics"
)

// Receipt records where a message landed.
type Receipt struct {
	Destination string `json:"destination"`
	ID          string `json:"id,omitempty"`
	Err         error  `json:"-"`
}

// Result is the outcome of one Dispatch.
type Result struct {
	Receipts []Receipt
}

// Delivered counts destinations that accepted the message.
func (r Result) Delivered() int {
	n := 0
	for _, rc := range r.Receipts {
		if rc.Err == nil {
			n++
		}
	}
	return n
}

// Dispatcher sends messages to its destinations one at a time, spacing
// consecutive sends with a pacer. Dispatch calls are serialized.
type Dispatcher struct {
	mu      sync.Mutex
	dests   []Destination
	pacer   *infra.Pacer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPacer sets the pacer spacing sends.
func WithPacer(p *infra.Pacer) DispatcherOption {
	return func(d *Dispatcher) { d.pacer = p }
}

// WithMetrics records deliveries.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher creates a dispatcher over dests, tried in order.
func NewDispatcher(dests []Destination, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{dests: dests, log: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Add appends a destination.
func (d *Dispatcher) Add(dest Destination) {
	d.mu.Lock()
	d.dests = append(d.dests, dest)
	d.mu.Unlock()
}

// Destinations lists destination names in dispatch order.
func (d *Dispatcher) Destinations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.dests))
	for i, dest := range d.dests {
		names[i] = dest.Name()
	}
	return names
}

// Dispatch delivers msg to every destination and pins it where msg.Pin is
// set. Per-destination failures are logged and recorded; the returned error
// is non-nil only when no destination accepted the message or ctx ended.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res Result
	var errs []error
	for _, dest := range d.dests {
		if err := d.pacer.Wait(ctx); err != nil {
			return res, err
		}
		id, err := dest.Send(ctx, msg)
		d.metrics.RecordDelivery(dest.Name(), err)
		res.Receipts = append(res.Receipts, Receipt{Destination: dest.Name(), ID: id, Err: err})
		if err != nil {
			d.log.Error("delivery failed", "destination", dest.Name(), "kind", msg.Kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name(), err))
			continue
		}
		if msg.Pin && id != "" {
			if err := dest.Pin(ctx, id); err != nil {
				d.log.Warn("pin failed", "destination", dest.Name(), "error", err)
			}
		}
	}

	if len(d.dests) > 0 && res.Delivered() == 0 {
		return res, errors.Join(append([]error{ErrNotDelivered}, errs...)...)
	}
	return res, nil
}
