package sia

import "sync/atomic"

// Category names one bucket of the error/success taxonomy in
// spec.md §3 and §7. Modeled as an enum with a backing array, per
// Design Note §9 ("prefer an array indexed by enum over a string
// map"), rather than a map[string]int64.
type Category int

const (
	CategoryEvents Category = iota
	CategoryValidEvents
	CategoryErrorsCRC
	CategoryErrorsTimestamp
	CategoryErrorsAccount
	CategoryErrorsCode
	CategoryErrorsFormat
	CategoryErrorsUserCode
	categoryCount
)

// Name returns the dotted counter name used in spec.md's taxonomy
// tables, e.g. "errors.crc".
func (c Category) Name() string {
	switch c {
	case CategoryEvents:
		return "events"
	case CategoryValidEvents:
		return "valid_events"
	case CategoryErrorsCRC:
		return "errors.crc"
	case CategoryErrorsTimestamp:
		return "errors.timestamp"
	case CategoryErrorsAccount:
		return "errors.account"
	case CategoryErrorsCode:
		return "errors.code"
	case CategoryErrorsFormat:
		return "errors.format"
	case CategoryErrorsUserCode:
		return "errors.user_code"
	default:
		return "unknown"
	}
}

// Categories lists every counter bucket, in declaration order.
func Categories() []Category {
	cats := make([]Category, categoryCount)
	for i := range cats {
		cats[i] = Category(i)
	}
	return cats
}

// Counters is a named multiset of error/success categories, atomic
// and safe for concurrent increment from every connection goroutine.
type Counters struct {
	values [categoryCount]int64
}

// NewCounters builds a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{}
}

// Incr atomically increments cat by one and returns the new value.
func (c *Counters) Incr(cat Category) int64 {
	return atomic.AddInt64(&c.values[cat], 1)
}

// Get returns the current value of cat.
func (c *Counters) Get(cat Category) int64 {
	return atomic.LoadInt64(&c.values[cat])
}

// Snapshot returns a point-in-time copy of every category, keyed by
// name, for diagnostics or logging.
func (c *Counters) Snapshot() map[string]int64 {
	out := make(map[string]int64, categoryCount)
	for _, cat := range Categories() {
		out[cat.Name()] = c.Get(cat)
	}
	return out
}
