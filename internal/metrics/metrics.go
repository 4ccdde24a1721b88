// Package metrics holds the dispatcher's in-process operability
// counters, exposed read-only via the ingress server's /healthz
// endpoint. These are deliberately plain atomic counters, not a
// metrics-library integration — the corpus's own support service
// exposes lifecycle counters the same lightweight way.
package metrics

import "sync/atomic"

// Counters tracks the dispatch loop's lifetime activity.
type Counters struct {
	Consumed     atomic.Int64
	Routed       atomic.Int64
	Unrouted     atomic.Int64
	Unparseable  atomic.Int64
	FollowOns    atomic.Int64
}

// Snapshot is the JSON-serializable view returned by /healthz.
type Snapshot struct {
	Consumed    int64 `json:"consumed"`
	Routed      int64 `json:"routed"`
	Unrouted    int64 `json:"unrouted"`
	Unparseable int64 `json:"unparseable"`
	FollowOns   int64 `json:"follow_ons"`
}

// Snapshot reads every counter without coordinating across them; the
// result is a best-effort point-in-time view, not a transaction.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Consumed:    c.Consumed.Load(),
		Routed:      c.Routed.Load(),
		Unrouted:    c.Unrouted.Load(),
		Unparseable: c.Unparseable.Load(),
		FollowOns:   c.FollowOns.Load(),
	}
}
