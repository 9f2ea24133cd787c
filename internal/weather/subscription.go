package weather

import "sync"

// Update is one emission of a Subscription: the dataset projected out of the
// response of Epoch, or the error that ended that epoch.
type Update struct {
	Key    DatasetKey
	Epoch  uint64
	Series Series
	Err    error
}

// Subscription is a live per-dataset view over the aggregator's cached
// response. Updates holds at most one undelivered value; a newer epoch
// replaces an unread older one. That cuts both ways: an unread failure can be
// replaced by a later success, and an unread success can be replaced by a
// later failure, in which case the reader only sees the error and must call
// Aggregator.Current for the cached data.
type Subscription struct {
	ID string

	key  DatasetKey
	ch   chan Update
	agg  *Aggregator
	once sync.Once
}

func (s *Subscription) Key() DatasetKey { return s.key }

// Updates is closed when the subscription or the aggregator is closed.
func (s *Subscription) Updates() <-chan Update { return s.ch }

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.agg.unsubscribe(s) })
}

// offer delivers u, dropping an unread older update. The caller holds the
// aggregator lock, so there is a single producer.
func (s *Subscription) offer(u Update) {
	select {
	case s.ch <- u:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- u:
	default:
	}
}
