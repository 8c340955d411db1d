package pipeline

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/cache"
)

// MemoryPort is the single data memory port behind the load/store queue.
// Load returns the zero-extended value together with the number of cycles
// the access occupies the port. Stores are written at commit and do not
// occupy the port.
type MemoryPort interface {
	Load(addr uint32, width insts.Width) (value uint32, latency uint64)
	Store(addr uint32, width insts.Width, value uint32)
	Flush()
}

// DirectMemoryPort accesses main memory with a fixed latency.
type DirectMemoryPort struct {
	memory  *emu.Memory
	latency uint64
}

// NewDirectMemoryPort creates a port with the given load latency.
func NewDirectMemoryPort(memory *emu.Memory, latency uint64) *DirectMemoryPort {
	if latency == 0 {
		latency = 1
	}
	return &DirectMemoryPort{memory: memory, latency: latency}
}

// Load reads memory.
func (p *DirectMemoryPort) Load(addr uint32, width insts.Width) (uint32, uint64) {
	return p.memory.Load(addr, width), p.latency
}

// Store writes memory.
func (p *DirectMemoryPort) Store(addr uint32, width insts.Width, value uint32) {
	p.memory.Store(addr, width, value)
}

// Flush does nothing; main memory is always current.
func (p *DirectMemoryPort) Flush() {}

// CachedMemoryPort accesses memory through an L1 data cache. A load holds
// the port for the hit or miss latency reported by the cache.
type CachedMemoryPort struct {
	cache *cache.Cache
}

// NewCachedMemoryPort creates a port backed by a data cache in front of
// memory.
func NewCachedMemoryPort(config cache.Config, memory *emu.Memory) *CachedMemoryPort {
	return &CachedMemoryPort{
		cache: cache.New(config, cache.NewMemoryBacking(memory)),
	}
}

// Load reads through the cache.
func (p *CachedMemoryPort) Load(addr uint32, width insts.Width) (uint32, uint64) {
	result := p.cache.Read(addr, width)
	latency := result.Latency
	if latency == 0 {
		latency = 1
	}
	return result.Data, latency
}

// Store writes through the cache (write-allocate).
func (p *CachedMemoryPort) Store(addr uint32, width insts.Width, value uint32) {
	p.cache.Write(addr, width, value)
}

// Flush writes every dirty line back to memory.
func (p *CachedMemoryPort) Flush() {
	p.cache.Flush()
}

// Cache returns the underlying data cache.
func (p *CachedMemoryPort) Cache() *cache.Cache {
	return p.cache
}
