// Package loader provides program image loading for RV32I executables.
//
// Two formats are accepted: 32-bit little-endian RISC-V ELF executables and
// the textual hex memory image used by the course test suites.
package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/tomasim/emu"
)

// ErrMalformedImage is returned when a program image cannot be parsed.
var ErrMalformedImage = errors.New("malformed program image")

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the initial stack pointer given to ELF programs.
// Hex images start with every register cleared, including sp.
const DefaultStackTop = 0x7FFFF000

// Segment represents a loadable region of a program image.
type Segment struct {
	// VirtAddr is the address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments of the image.
	Segments []Segment
	// InitialSP is the initial stack pointer value, 0 to leave sp cleared.
	InitialSP uint32
}

// Install copies every segment into memory, zero-filling the BSS tail.
func (p *Program) Install(memory *emu.Memory) {
	for _, seg := range p.Segments {
		memory.LoadProgram(seg.VirtAddr, seg.Data)
		if seg.MemSize > uint32(len(seg.Data)) {
			memory.LoadProgram(seg.VirtAddr+uint32(len(seg.Data)),
				make([]byte, seg.MemSize-uint32(len(seg.Data))))
		}
	}
}

// Load reads a program image from a file. ELF files are recognized by their
// magic number; anything else is parsed as a hex image.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program image: %w", err)
	}
	return Parse(data)
}

// Parse decodes a program image held in memory.
func Parse(data []byte) (*Program, error) {
	if bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		return LoadELF(bytes.NewReader(data))
	}
	return LoadHex(bytes.NewReader(data))
}

// LoadELF parses a 32-bit RISC-V ELF executable.
func LoadELF(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse ELF file: %v", ErrMalformedImage, err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("%w: not a 32-bit ELF file", ErrMalformedImage)
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: not a RISC-V ELF file (machine type: %v)",
			ErrMalformedImage, f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("%w: short read for segment at 0x%x: got %d bytes, expected %d",
					ErrMalformedImage, phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}
