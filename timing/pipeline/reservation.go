package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

type rsEntry struct {
	busy bool
	op   insts.Op
	a, b Operand
	dest Tag
}

// ReservationStation holds ALU, branch-compare and jump-target operations
// until their operands are known. Execution is combinational: every ready
// entry computes and publishes in the same cycle, and its slot is released
// at the end of that cycle.
type ReservationStation struct {
	entries []rsEntry
	used    int
	fired   []int
}

// NewReservationStation creates a station with size slots.
func NewReservationStation(size int) *ReservationStation {
	return &ReservationStation{
		entries: make([]rsEntry, size),
	}
}

// Insert places an operation in a free slot. It returns false when the
// station is full.
func (rs *ReservationStation) Insert(op insts.Op, a, b Operand, dest Tag) bool {
	for i := range rs.entries {
		if rs.entries[i].busy {
			continue
		}
		rs.entries[i] = rsEntry{busy: true, op: op, a: a, b: b, dest: dest}
		rs.used++
		return true
	}
	return false
}

// Work executes every entry whose operands are resolved and returns the
// results. Executed slots are freed by Sync.
func (rs *ReservationStation) Work() ([]Message, error) {
	var out []Message
	for i := range rs.entries {
		e := &rs.entries[i]
		if !e.busy || !e.a.Resolved() || !e.b.Resolved() {
			continue
		}
		value, err := emu.Compute(e.op, e.a.Value, e.b.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to execute %s for #%d: %w", e.op, e.dest, err)
		}
		out = append(out, Message{Tag: e.dest, Value: value, Kind: MessageExecuted})
		rs.fired = append(rs.fired, i)
	}
	return out, nil
}

// Snoop resolves operands waiting on m.
func (rs *ReservationStation) Snoop(m Message) {
	for i := range rs.entries {
		e := &rs.entries[i]
		if !e.busy {
			continue
		}
		e.a.Snoop(m)
		e.b.Snoop(m)
	}
}

// Sync releases the slots executed this cycle.
func (rs *ReservationStation) Sync() {
	for _, i := range rs.fired {
		rs.entries[i] = rsEntry{}
		rs.used--
	}
	rs.fired = rs.fired[:0]
}

// Squash empties the station.
func (rs *ReservationStation) Squash() {
	for i := range rs.entries {
		rs.entries[i] = rsEntry{}
	}
	rs.used = 0
	rs.fired = rs.fired[:0]
}

// Full reports whether no slot is free.
func (rs *ReservationStation) Full() bool {
	return rs.used == len(rs.entries)
}

// Len returns the number of occupied slots.
func (rs *ReservationStation) Len() int {
	return rs.used
}

// Capacity returns the number of slots.
func (rs *ReservationStation) Capacity() int {
	return len(rs.entries)
}
