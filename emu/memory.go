package emu

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/tomasim/insts"
)

// pageBits sets the granularity at which written memory is tracked.
const pageBits = 12

// AddressSpace is the size of the simulated 32-bit address space.
const AddressSpace = uint64(1) << 32

// Memory is a flat little-endian byte-addressed memory covering the full
// 32-bit address space. Storage is allocated lazily by the akita storage unit,
// so untouched memory reads as zero.
type Memory struct {
	storage *mem.Storage
	touched map[uint32]struct{}
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{
		storage: mem.NewStorage(AddressSpace),
		touched: make(map[uint32]struct{}),
	}
}

// ReadBytes reads n bytes starting at addr. Accesses wrap around the top of
// the address space.
func (m *Memory) ReadBytes(addr uint32, n int) []byte {
	if uint64(addr)+uint64(n) > AddressSpace {
		data := make([]byte, n)
		for i := range data {
			data[i] = m.ReadBytes(addr+uint32(i), 1)[0]
		}
		return data
	}

	data, err := m.storage.Read(uint64(addr), uint64(n))
	if err != nil {
		panic(fmt.Sprintf("memory read at 0x%08x: %v", addr, err))
	}
	return data
}

// WriteBytes writes data starting at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) {
	if uint64(addr)+uint64(len(data)) > AddressSpace {
		for i, b := range data {
			m.WriteBytes(addr+uint32(i), []byte{b})
		}
		return
	}

	if err := m.storage.Write(uint64(addr), data); err != nil {
		panic(fmt.Sprintf("memory write at 0x%08x: %v", addr, err))
	}

	if len(data) == 0 {
		return
	}
	first := addr >> pageBits
	last := (addr + uint32(len(data)) - 1) >> pageBits
	for p := first; ; p++ {
		m.touched[p] = struct{}{}
		if p == last {
			break
		}
	}
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) uint8 {
	return m.ReadBytes(addr, 1)[0]
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint32) uint16 {
	return binary.LittleEndian.Uint16(m.ReadBytes(addr, 2))
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(m.ReadBytes(addr, 4))
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	m.WriteBytes(addr, []byte{value})
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint32, value uint16) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	m.WriteBytes(addr, buf)
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	m.WriteBytes(addr, buf)
}

// Load reads width bytes at addr and returns them zero-extended.
func (m *Memory) Load(addr uint32, width insts.Width) uint32 {
	switch width {
	case insts.WidthByte:
		return uint32(m.Read8(addr))
	case insts.WidthHalf:
		return uint32(m.Read16(addr))
	default:
		return m.Read32(addr)
	}
}

// Store writes the low width bytes of value at addr.
func (m *Memory) Store(addr uint32, width insts.Width, value uint32) {
	switch width {
	case insts.WidthByte:
		m.Write8(addr, uint8(value))
	case insts.WidthHalf:
		m.Write16(addr, uint16(value))
	default:
		m.Write32(addr, value)
	}
}

// LoadProgram copies a program image into memory at the given address.
func (m *Memory) LoadProgram(addr uint32, program []byte) {
	m.WriteBytes(addr, program)
}

// TouchedPages returns the base addresses of every page that has been
// written, in ascending order.
func (m *Memory) TouchedPages() []uint32 {
	pages := make([]uint32, 0, len(m.touched))
	for p := range m.touched {
		pages = append(pages, p<<pageBits)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return pages
}

// Diff compares the written contents of two memories and returns the first
// address at which they differ.
func (m *Memory) Diff(other *Memory) (addr uint32, differs bool) {
	pages := make(map[uint32]struct{}, len(m.touched)+len(other.touched))
	for p := range m.touched {
		pages[p] = struct{}{}
	}
	for p := range other.touched {
		pages[p] = struct{}{}
	}

	sorted := make([]uint32, 0, len(pages))
	for p := range pages {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	const pageSize = 1 << pageBits
	for _, p := range sorted {
		base := p << pageBits
		a := m.ReadBytes(base, pageSize)
		b := other.ReadBytes(base, pageSize)
		for i := range a {
			if a[i] != b[i] {
				return base + uint32(i), true
			}
		}
	}
	return 0, false
}
