package bridge

import (
	"github.com/vmbridge/vmbridge/internal/ports"
	"github.com/vmbridge/vmbridge/internal/vm"
)

// FeedPortEvents applies guest-reported bind events to the reconciler
// until the event channel closes. Guest events only ever touch the active
// set; user intent stays with SetEnabled callers. Blocks, so run it on its
// own goroutine.
func FeedPortEvents(rec *ports.Reconciler, events <-chan vm.PortEvent) {
	for ev := range events {
		rec.SetActive(ev.Port, ev.Active)
	}
}
