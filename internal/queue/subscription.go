package queue

import "ytqueue/internal/core"

// ChangeReason names the mutation that produced a QueueChange.
type ChangeReason string

const (
	ReasonAdded        ChangeReason = "added"
	ReasonPlayNext     ChangeReason = "play_next"
	ReasonSynced       ChangeReason = "synced"
	ReasonRemoved      ChangeReason = "removed"
	ReasonMoved        ChangeReason = "moved"
	ReasonIndexChanged ChangeReason = "index_changed"
	ReasonCleared      ChangeReason = "cleared"
	ReasonInfiniteMode ChangeReason = "infinite_mode"
	ReasonRadio        ChangeReason = "radio"
)

// QueueChange is published after every queue mutation.
type QueueChange struct {
	Snapshot core.QueueSnapshot
	Reason   ChangeReason
}

// Subscription delivers queue changes. A slow reader loses the oldest
// pending changes, never the latest one.
type Subscription struct {
	ch chan QueueChange
}

// Changes returns the receive side of the subscription.
func (s *Subscription) Changes() <-chan QueueChange {
	return s.ch
}

// Subscribe registers a new change listener.
func (e *Engine) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan QueueChange, subscriptionBuffer)}

	e.mu.Lock()
	e.subscribers[sub] = struct{}{}
	e.mu.Unlock()

	return sub
}

// Unsubscribe removes the listener and closes its channel.
func (e *Engine) Unsubscribe(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subscribers[sub]; !ok {
		return
	}
	delete(e.subscribers, sub)
	close(sub.ch)
}

// publishLocked must be called with e.mu held. Every send happens under the
// lock, so draining one slot always makes room for the new change.
func (e *Engine) publishLocked(reason ChangeReason) {
	e.metrics.SetQueueLength(len(e.tracks))

	if len(e.subscribers) == 0 {
		return
	}

	change := QueueChange{Snapshot: e.snapshotLocked(), Reason: reason}
	for sub := range e.subscribers {
		select {
		case sub.ch <- change:
			continue
		default:
		}

		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- change:
		default:
			e.logger.Debug("Dropped queue change for slow subscriber")
		}
	}
}
