// Package ports tracks the difference between the set of forwarded ports a
// user has enabled and the set the guest has actually bound, and publishes
// consistent snapshots of that evolving state.
package ports

import (
	"sort"
	"sync"
)

// Snapshot is a point-in-time view of port state. Inactive is always
// Enabled minus Active, derived at snapshot time and never stored, so the
// two can't drift apart. Slices are sorted copies; holders cannot mutate
// the source of truth through them.
type Snapshot struct {
	Enabled  []uint16
	Active   []uint16
	Inactive []uint16
}

// Reconciler is the single source of truth for one session's port state.
// It takes exactly two kinds of input: user toggles via SetEnabled and
// guest bind reports via SetActive. All mutation is serialized behind one
// mutex so no query ever observes a partially-applied update.
//
// Active-without-enabled is a valid transient state: the guest may report
// a bind before user intent is recorded, or keep a port bound after the
// user disables it. The reconciler records what it is told and never
// auto-corrects.
type Reconciler struct {
	mu      sync.Mutex
	enabled map[uint16]struct{}
	active  map[uint16]struct{}
	subs    []chan Snapshot
	closed  bool
}

// NewReconciler returns an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		enabled: make(map[uint16]struct{}),
		active:  make(map[uint16]struct{}),
	}
}

// SetEnabled records user intent for port. It has no direct effect on the
// active set; an enabled-then-disabled port the guest still has bound
// remains visible as active.
func (r *Reconciler) SetEnabled(port uint16, enabled bool) {
	r.mu.Lock()
	changed := setMember(r.enabled, port, enabled)
	r.publishLocked(changed)
}

// SetActive records a guest-reported bind state change. Driven only by VM
// events, never by user action.
func (r *Reconciler) SetActive(port uint16, active bool) {
	r.mu.Lock()
	changed := setMember(r.active, port, active)
	r.publishLocked(changed)
}

// EnabledPorts returns the sorted set of user-enabled ports.
func (r *Reconciler) EnabledPorts() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.enabled)
}

// ActivePorts returns the sorted set of guest-bound ports.
func (r *Reconciler) ActivePorts() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.active)
}

// InactivePorts returns enabled minus active, recomputed on demand so it
// always reflects the latest state.
func (r *Reconciler) InactivePorts() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inactiveLocked()
}

// Current returns a consistent snapshot of all three views.
func (r *Reconciler) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe registers an observer. The returned channel receives a value
// snapshot after every state-changing call; delivery is non-blocking, so a
// slow observer misses intermediate snapshots rather than stalling the
// reconciler. The unsubscribe func is idempotent and closes the channel.
func (r *Reconciler) Subscribe() (<-chan Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Snapshot, 16)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.subs = append(r.subs, ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, s := range r.subs {
				if s == ch {
					r.subs = append(r.subs[:i], r.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, unsub
}

// Close drops all subscribers and closes their channels. Called at session
// end; subsequent Set calls still mutate state but notify no one.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}

// publishLocked notifies subscribers when the mutation changed state, then
// releases the mutex. Sends are non-blocking and happen under the lock so
// an unsubscribe can't close a channel mid-send.
func (r *Reconciler) publishLocked(changed bool) {
	if changed && !r.closed && len(r.subs) > 0 {
		snap := r.snapshotLocked()
		for _, ch := range r.subs {
			select {
			case ch <- snap:
			default:
			}
		}
	}
	r.mu.Unlock()
}

func (r *Reconciler) snapshotLocked() Snapshot {
	return Snapshot{
		Enabled:  sortedKeys(r.enabled),
		Active:   sortedKeys(r.active),
		Inactive: r.inactiveLocked(),
	}
}

func (r *Reconciler) inactiveLocked() []uint16 {
	out := make([]uint16, 0, len(r.enabled))
	for p := range r.enabled {
		if _, ok := r.active[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func setMember(set map[uint16]struct{}, port uint16, member bool) bool {
	_, present := set[port]
	if member == present {
		return false
	}
	if member {
		set[port] = struct{}{}
	} else {
		delete(set, port)
	}
	return true
}

func sortedKeys(set map[uint16]struct{}) []uint16 {
	out := make([]uint16, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
