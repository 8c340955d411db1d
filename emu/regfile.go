// Package emu provides functional RV32I emulation.
package emu

// NumRegs is the number of architectural integer registers.
const NumRegs = 32

// RegFile represents the RV32I register file.
// It contains 32 integer registers (x0-x31) and the program counter.
type RegFile struct {
	// X holds the integer registers. X[0] is hardwired to zero: writes to
	// it are discarded.
	X [NumRegs]uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads a register value. Register 0 and out-of-range registers
// return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to x0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.X[reg] = value
}

// Equal reports whether two register files hold the same register values.
// The program counter is not compared.
func (r *RegFile) Equal(other *RegFile) bool {
	return r.X == other.X
}
