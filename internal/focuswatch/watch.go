// Package focuswatch feeds window manager workspace focus events into the
// coordinator's bookkeeping.
package focuswatch

import (
	"context"
	"errors"

	"pkt.systems/pslog"
	"pkt.systems/swayless/core"
	"pkt.systems/swayless/schema"
)

// ErrStreamClosed reports that the window manager dropped the subscription.
var ErrStreamClosed = errors.New("focus event stream closed")

// ChangeFocus is the workspace event change that moves focus.
const ChangeFocus = "focus"

// Observer receives focus changes made outside the coordinator.
type Observer interface {
	ObserveFocus(ctx context.Context, event schema.FocusEvent) error
}

// Watcher relays focus events from a FocusSource to an Observer.
type Watcher struct {
	source   core.FocusSource
	observer Observer
	log      pslog.Logger
}

// New constructs a Watcher.
func New(source core.FocusSource, observer Observer, logger pslog.Logger) *Watcher {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Watcher{source: source, observer: observer, log: logger.With("component", "focuswatch")}
}

// Run subscribes once and relays events until ctx is cancelled, in which
// case it returns nil, or the stream closes, which returns ErrStreamClosed.
func (w *Watcher) Run(ctx context.Context) error {
	updates, err := w.source.SubscribeFocus(ctx)
	if err != nil {
		return err
	}
	w.log.Info("focus listener started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamClosed
			}
			w.handle(ctx, update)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, update core.FocusUpdate) {
	if update.Err != nil {
		w.log.Warn("focus event skipped", "err", update.Err)
		return
	}
	event := update.Event
	if event.Change != ChangeFocus {
		w.log.Trace("workspace event ignored", "change", event.Change)
		return
	}
	w.log.Debug("focus event", "workspace", event.Workspace, "output", event.Output)
	if err := w.observer.ObserveFocus(ctx, event); err != nil {
		w.log.Warn("focus event not applied", "workspace", event.Workspace, "err", err)
	}
}
