package session

import "github.com/openbench/acquire-core/internal/device"

// DatafeedSubscribe registers fn to receive every packet sent with Send,
// in subscription order. It returns an id usable with
// DatafeedUnsubscribe.
func (l *Loop) DatafeedSubscribe(fn DatafeedFunc) int {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	id := len(l.subs)
	if len(l.subs) > 0 {
		id = l.subs[len(l.subs)-1].id + 1
	}
	l.subs = append(l.subs, subscriber{id: id, fn: fn})
	return id
}

// DatafeedUnsubscribe removes a previously registered subscriber. It is a
// no-op if id is unknown.
func (l *Loop) DatafeedUnsubscribe(id int) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

// Send invokes every subscriber synchronously, in subscription order, with
// packet. Subscribers must not call back into the loop from within their
// callback (spec.md §4.1 "never re-entered for the same subscriber").
func (l *Loop) Send(inst *device.Instance, packet any) {
	l.subsMu.Lock()
	subs := make([]subscriber, len(l.subs))
	copy(subs, l.subs)
	l.subsMu.Unlock()

	for _, s := range subs {
		s.fn(inst, packet)
	}
}
