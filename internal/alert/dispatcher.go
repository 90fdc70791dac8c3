package alert

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nadmax/nexwatch/internal/metrics"
)

// Notifier delivers an alert somewhere other than the artifact file. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, a *Alert) error
}

type Dispatcher struct {
	writer    *Writer
	notifiers []Notifier
}

// NewDispatcher builds a dispatcher. A nil writer skips the artifact file.
func NewDispatcher(writer *Writer, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{writer: writer, notifiers: notifiers}
}

// Dispatch writes the artifact and notifies every notifier. Failures in one step do not
// stop the others; they are logged and returned joined. path is empty when nothing was written.
func (d *Dispatcher) Dispatch(ctx context.Context, a *Alert) (path string, err error) {
	source := string(a.Source)
	metrics.RecordAlert(source)

	var errs []error
	if d.writer != nil {
		path, err = d.writer.Write(a)
		if err != nil {
			metrics.RecordAlertFailure(source, "write")
			log.Printf("[alert] failed to write alert %s: %v", a.ID, err)
			errs = append(errs, err)
		}
	}

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			metrics.RecordAlertFailure(source, "notify")
			log.Printf("[alert] notifier %T failed for alert %s: %v", n, a.ID, err)
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}

	return path, errors.Join(errs...)
}
