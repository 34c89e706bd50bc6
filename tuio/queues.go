package tuio

// DefaultQueueCapacity is the per-kind buffer of Queues created by NewQueues with zero capacity.
const DefaultQueueCapacity = 1024

// Queues buffers decoded updates between the receiving goroutine (single producer)
// and Store.Drain (single consumer). One bounded channel per element kind.
type Queues struct {
	Bounds   chan BoundsUpdate
	Symbols  chan SymbolUpdate
	Pointers chan PointerUpdate
	Data     chan DataUpdate
}

// NewQueues creates queues with given per-kind capacity
func NewQueues(capacity int) *Queues {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queues{
		Bounds:   make(chan BoundsUpdate, capacity),
		Symbols:  make(chan SymbolUpdate, capacity),
		Pointers: make(chan PointerUpdate, capacity),
		Data:     make(chan DataUpdate, capacity),
	}
}

// Len returns number of queued updates over all kinds
func (q *Queues) Len() int {
	return len(q.Bounds) + len(q.Symbols) + len(q.Pointers) + len(q.Data)
}

func (q *Queues) pushBounds(u BoundsUpdate) bool {
	select {
	case q.Bounds <- u:
		return true
	default:
		return false
	}
}

func (q *Queues) pushSymbol(u SymbolUpdate) bool {
	select {
	case q.Symbols <- u:
		return true
	default:
		return false
	}
}

func (q *Queues) pushPointer(u PointerUpdate) bool {
	select {
	case q.Pointers <- u:
		return true
	default:
		return false
	}
}

func (q *Queues) pushData(u DataUpdate) bool {
	select {
	case q.Data <- u:
		return true
	default:
		return false
	}
}
