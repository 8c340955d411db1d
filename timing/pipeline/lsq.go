package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

type lsqState uint8

const (
	lsqWaiting lsqState = iota
	lsqAccessing
	lsqPublished
	lsqRetired
)

type lsqEntry struct {
	store    bool
	width    insts.Width
	unsigned bool
	base     Operand
	offset   int32
	data     Operand
	dest     Tag

	// link is the youngest older store that had not committed when this
	// load was inserted. A load may not read memory until it is cleared.
	link Producer

	state lsqState
	addr  uint32
	value uint32
}

func (e *lsqEntry) address() uint32 {
	return e.base.Value + uint32(e.offset)
}

// LoadStoreQueue holds memory operations in program order. Loads access
// memory through a single port once their base is known and every older
// store has committed. Stores complete as soon as their address and data are
// known and write memory when they commit.
type LoadStoreQueue struct {
	entries []lsqEntry
	head    int
	count   int

	port      MemoryPort
	lastStore Producer

	// Memory port state.
	accessing int
	countdown uint64

	// Changes staged by Work and applied by Sync.
	startIdx   int
	startLat   uint64
	startValue uint32
	finishIdx  int
	published  []int

	loads, stores uint64
}

// NewLoadStoreQueue creates a queue with size slots behind port.
func NewLoadStoreQueue(size int, port MemoryPort) *LoadStoreQueue {
	q := &LoadStoreQueue{
		entries: make([]lsqEntry, size),
		port:    port,
	}
	q.resetPort()
	q.resetStaged()
	return q
}

func (q *LoadStoreQueue) resetPort() {
	q.accessing = -1
	q.countdown = 0
}

func (q *LoadStoreQueue) resetStaged() {
	q.startIdx = -1
	q.finishIdx = -1
	q.published = q.published[:0]
}

func (q *LoadStoreQueue) slot(i int) int {
	return (q.head + i) % len(q.entries)
}

func (q *LoadStoreQueue) push(e lsqEntry) bool {
	if q.Full() {
		return false
	}
	q.entries[q.slot(q.count)] = e
	q.count++
	return true
}

// InsertLoad appends a load. Its link is the most recent store not yet
// committed.
func (q *LoadStoreQueue) InsertLoad(
	width insts.Width, unsigned bool, base Operand, offset int32, dest Tag,
) bool {
	return q.push(lsqEntry{
		width:    width,
		unsigned: unsigned,
		base:     base,
		offset:   offset,
		dest:     dest,
		link:     q.lastStore,
	})
}

// InsertStore appends a store and makes it the most recent uncommitted
// store.
func (q *LoadStoreQueue) InsertStore(
	width insts.Width, base, data Operand, offset int32, dest Tag,
) bool {
	if !q.push(lsqEntry{
		store:  true,
		width:  width,
		base:   base,
		offset: offset,
		data:   data,
		dest:   dest,
	}) {
		return false
	}
	q.lastStore = ProducedBy(dest)
	return true
}

// Work advances the memory port and returns the completions of this cycle:
// at most one load value plus every store whose operands have resolved.
func (q *LoadStoreQueue) Work() []Message {
	var out []Message

	for i := 0; i < q.count; i++ {
		idx := q.slot(i)
		e := &q.entries[idx]
		if e.store && e.state == lsqWaiting && e.base.Resolved() && e.data.Resolved() {
			out = append(out, Message{Tag: e.dest, Value: e.address(), Kind: MessageStored})
			q.published = append(q.published, idx)
		}
	}

	if q.accessing >= 0 {
		if q.countdown <= 1 {
			e := &q.entries[q.accessing]
			out = append(out, Message{Tag: e.dest, Value: e.value, Kind: MessageLoaded})
			q.finishIdx = q.accessing
		}
		return out
	}

	for i := 0; i < q.count; i++ {
		idx := q.slot(i)
		e := &q.entries[idx]
		if e.store || e.state != lsqWaiting || !e.base.Resolved() || e.link.Pending() {
			continue
		}
		raw, latency := q.port.Load(e.address(), e.width)
		q.startIdx = idx
		q.startLat = latency
		q.startValue = emu.ExtendLoad(raw, e.width, e.unsigned)
		if latency <= 1 {
			out = append(out, Message{Tag: e.dest, Value: q.startValue, Kind: MessageLoaded})
			q.finishIdx = idx
		}
		break
	}

	return out
}

// Snoop resolves base and data operands waiting on m.
func (q *LoadStoreQueue) Snoop(m Message) {
	for i := 0; i < q.count; i++ {
		e := &q.entries[q.slot(i)]
		if e.state != lsqWaiting {
			continue
		}
		e.base.Snoop(m)
		if e.store {
			e.data.Snoop(m)
		}
	}
}

// CommitStore writes the store tagged tag to memory and releases every load
// linked to it.
func (q *LoadStoreQueue) CommitStore(tag Tag) error {
	var store *lsqEntry
	for i := 0; i < q.count; i++ {
		e := &q.entries[q.slot(i)]
		if e.store && e.dest == tag && e.state != lsqRetired {
			store = e
			break
		}
	}
	if store == nil {
		return fmt.Errorf("no store #%d in the load/store queue", tag)
	}
	if !store.base.Resolved() || !store.data.Resolved() {
		return fmt.Errorf("store #%d committed with unresolved operands", tag)
	}

	store.addr = store.address()
	q.port.Store(store.addr, store.width, store.data.Value)
	store.state = lsqRetired
	q.stores++

	for i := 0; i < q.count; i++ {
		e := &q.entries[q.slot(i)]
		if link, ok := e.link.Get(); ok && link == tag {
			e.link = NoProducer
		}
	}
	if last, ok := q.lastStore.Get(); ok && last == tag {
		q.lastStore = NoProducer
	}
	return nil
}

// Sync applies the state changes of this cycle and pops retired entries
// from the head.
func (q *LoadStoreQueue) Sync() {
	for _, idx := range q.published {
		q.entries[idx].state = lsqPublished
	}

	switch {
	case q.startIdx >= 0:
		e := &q.entries[q.startIdx]
		e.addr = e.address()
		e.value = q.startValue
		e.state = lsqAccessing
		if q.finishIdx == q.startIdx {
			e.state = lsqRetired
			q.loads++
		} else {
			q.accessing = q.startIdx
			q.countdown = q.startLat - 1
		}
	case q.finishIdx >= 0:
		q.entries[q.finishIdx].state = lsqRetired
		q.loads++
		q.resetPort()
	case q.accessing >= 0:
		q.countdown--
	}

	for q.count > 0 && q.entries[q.head].state == lsqRetired {
		q.entries[q.head] = lsqEntry{}
		q.head = (q.head + 1) % len(q.entries)
		q.count--
	}

	q.resetStaged()
}

// Squash empties the queue and abandons any access in flight.
func (q *LoadStoreQueue) Squash() {
	for i := range q.entries {
		q.entries[i] = lsqEntry{}
	}
	q.head = 0
	q.count = 0
	q.lastStore = NoProducer
	q.resetPort()
	q.resetStaged()
}

// Full reports whether no slot is free.
func (q *LoadStoreQueue) Full() bool {
	return q.count == len(q.entries)
}

// Len returns the number of occupied slots.
func (q *LoadStoreQueue) Len() int {
	return q.count
}

// Capacity returns the number of slots.
func (q *LoadStoreQueue) Capacity() int {
	return len(q.entries)
}

// Busy reports whether a load is occupying the memory port.
func (q *LoadStoreQueue) Busy() bool {
	return q.accessing >= 0
}

// Completed returns the number of loads served and stores committed.
func (q *LoadStoreQueue) Completed() (loads, stores uint64) {
	return q.loads, q.stores
}
