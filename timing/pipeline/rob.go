package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// EntryKind selects what committing a reorder buffer entry does.
type EntryKind uint8

const (
	// EntryRegister writes Value to Dest.
	EntryRegister EntryKind = iota
	// EntryJumpRegister writes the link in Value to Dest and redirects fetch
	// to Target.
	EntryJumpRegister
	// EntryStore writes its load/store queue entry to memory.
	EntryStore
	// EntryBranch checks the predicted direction against Value.
	EntryBranch
	// EntryIllegal stops the core with an illegal instruction error.
	EntryIllegal
)

func (k EntryKind) String() string {
	switch k {
	case EntryRegister:
		return "reg"
	case EntryJumpRegister:
		return "jalr"
	case EntryStore:
		return "store"
	case EntryBranch:
		return "branch"
	case EntryIllegal:
		return "illegal"
	default:
		return "unknown"
	}
}

// Entry is one in-flight instruction in program order.
type Entry struct {
	Kind EntryKind
	Dest uint8

	// Value is the register result, the link of a jump, or 1/0 for a taken
	// or not-taken branch.
	Value uint32
	Done  bool

	PC uint32
	// Target is the taken target of a branch or the computed target of a
	// jump.
	Target         uint32
	PredictedTaken bool

	Inst *insts.Instruction
}

func (e Entry) String() string {
	state := "wait"
	if e.Done {
		state = "done"
	}
	return fmt.Sprintf("%-7s pc=0x%08x x%-2d val=0x%08x %s", e.Kind, e.PC, e.Dest, e.Value, state)
}

// ReorderBuffer is a circular FIFO of in-flight instructions. An entry's
// slot index is its tag. Only the head may commit, one per cycle.
type ReorderBuffer struct {
	entries []Entry
	head    int
	count   int
	popHead bool
}

// NewReorderBuffer creates a buffer with size slots.
func NewReorderBuffer(size int) *ReorderBuffer {
	return &ReorderBuffer{entries: make([]Entry, size)}
}

// NextTag returns the tag the next inserted entry will receive.
func (r *ReorderBuffer) NextTag() Tag {
	return Tag((r.head + r.count) % len(r.entries))
}

// Insert appends e at the tail and returns its tag. The caller checks Full.
func (r *ReorderBuffer) Insert(e Entry) Tag {
	if r.Full() {
		panic("reorder buffer overflow")
	}
	tag := r.NextTag()
	r.entries[tag] = e
	r.count++
	return tag
}

func (r *ReorderBuffer) live(tag Tag) bool {
	offset := (int(tag) - r.head + len(r.entries)) % len(r.entries)
	return int(tag) < len(r.entries) && offset < r.count
}

// Update records the result in m. A jump receives its target; every other
// kind receives its value.
func (r *ReorderBuffer) Update(m Message) {
	if !r.live(m.Tag) {
		return
	}
	e := &r.entries[m.Tag]
	if e.Kind == EntryJumpRegister {
		e.Target = m.Value
	} else if e.Kind != EntryStore {
		e.Value = m.Value
	}
	e.Done = true
}

// Work returns the head entry if it is ready to commit. The head is popped
// by Sync.
func (r *ReorderBuffer) Work() (Entry, Tag, bool) {
	if r.count == 0 || !r.entries[r.head].Done {
		return Entry{}, 0, false
	}
	r.popHead = true
	return r.entries[r.head], Tag(r.head), true
}

// Value returns the register value of tag if it has been produced.
func (r *ReorderBuffer) Value(tag Tag) (uint32, bool) {
	if !r.live(tag) {
		return 0, false
	}
	e := r.entries[tag]
	if e.Kind == EntryJumpRegister {
		return e.Value, true
	}
	return e.Value, e.Done
}

// Sync pops the committed head.
func (r *ReorderBuffer) Sync() {
	if !r.popHead {
		return
	}
	r.entries[r.head] = Entry{}
	r.head = (r.head + 1) % len(r.entries)
	r.count--
	r.popHead = false
}

// Squash drops every entry.
func (r *ReorderBuffer) Squash() {
	for i := range r.entries {
		r.entries[i] = Entry{}
	}
	r.head = 0
	r.count = 0
	r.popHead = false
}

// Entries returns the in-flight entries from head to tail.
func (r *ReorderBuffer) Entries() []Entry {
	out := make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(r.head+i)%len(r.entries)])
	}
	return out
}

// Full reports whether no slot is free.
func (r *ReorderBuffer) Full() bool {
	return r.count == len(r.entries)
}

// Empty reports whether no instruction is in flight.
func (r *ReorderBuffer) Empty() bool {
	return r.count == 0
}

// Len returns the number of in-flight entries.
func (r *ReorderBuffer) Len() int {
	return r.count
}

// Capacity returns the number of slots.
func (r *ReorderBuffer) Capacity() int {
	return len(r.entries)
}
