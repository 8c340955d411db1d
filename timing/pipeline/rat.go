package pipeline

import "github.com/sarchlab/tomasim/emu"

// RegisterAliasTable maps each architectural register to the in-flight
// instruction that will next write it. Committed values live in the shared
// register file.
type RegisterAliasTable struct {
	regFile *emu.RegFile
	alias   [emu.NumRegs]Producer
}

// NewRegisterAliasTable creates a table over regFile with no aliases.
func NewRegisterAliasTable(regFile *emu.RegFile) *RegisterAliasTable {
	return &RegisterAliasTable{regFile: regFile}
}

// Read returns the committed value of reg and its pending producer, if any.
// x0 never has a producer.
func (t *RegisterAliasTable) Read(reg uint8) (uint32, Producer) {
	return t.regFile.ReadReg(reg), t.alias[reg&31]
}

// Rename makes tag the producer of reg. Writes to x0 are discarded.
func (t *RegisterAliasTable) Rename(reg uint8, tag Tag) {
	if reg == 0 {
		return
	}
	t.alias[reg&31] = ProducedBy(tag)
}

// Commit writes value to reg. The alias is cleared only if tag is still the
// latest producer; a younger rename keeps its alias.
func (t *RegisterAliasTable) Commit(reg uint8, tag Tag, value uint32) {
	if reg == 0 {
		return
	}
	t.regFile.WriteReg(reg, value)
	if cur, ok := t.alias[reg&31].Get(); ok && cur == tag {
		t.alias[reg&31] = NoProducer
	}
}

// Pending reports whether reg has an in-flight producer.
func (t *RegisterAliasTable) Pending(reg uint8) bool {
	return t.alias[reg&31].Pending()
}

// Squash drops every alias. The register file already holds the committed
// state.
func (t *RegisterAliasTable) Squash() {
	t.alias = [emu.NumRegs]Producer{}
}
