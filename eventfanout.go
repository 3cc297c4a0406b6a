package swayless

import (
	"pkt.systems/swayless/core"
	"pkt.systems/swayless/schema"
)

// stateFanout delivers each state event to every sink in order.
type stateFanout struct {
	sinks []core.StateSink
}

func (f stateFanout) OnStateEvent(event schema.StateEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnStateEvent(event)
	}
}

// fanoutSinks collapses sinks into one, skipping nils.
func fanoutSinks(sinks ...core.StateSink) core.StateSink {
	kept := make([]core.StateSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return stateFanout{sinks: kept}
}
