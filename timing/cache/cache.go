// Package cache provides an L1 data cache model built on Akita cache components.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/tomasim/insts"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64
}

// DefaultL1DConfig returns the default configuration of the data cache:
// 16KB, 4-way, 32B lines.
func DefaultL1DConfig() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     32,
		HitLatency:    2,
		MissLatency:   10,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the zero-extended data read (for load operations).
	Data uint32
	// Evicted is true if a valid block was evicted.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint32
}

// Cache is a write-back, write-allocate cache. Tags and replacement are
// managed by an Akita directory with an LRU victim finder; block data lives
// alongside it.
type Cache struct {
	config Config

	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats Statistics

	backing BackingStore
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the fraction of accesses that hit, or 0 with no accesses.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore is the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint32, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint32, data []byte)
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	return addr &^ uint32(c.config.BlockSize-1)
}

// straddles reports whether an access crosses a block boundary.
func (c *Cache) straddles(addr uint32, size int) bool {
	offset := int(addr - c.blockAddr(addr))
	return offset+size > c.config.BlockSize
}

// Read performs a cache read of width bytes.
// Returns the access result including hit/miss and latency.
func (c *Cache) Read(addr uint32, width insts.Width) AccessResult {
	size := int(width)
	if !c.straddles(addr, size) {
		return c.access(addr, size, false, 0)
	}

	// Misaligned across two blocks: service byte by byte, the slowest
	// byte decides the latency.
	combined := AccessResult{Hit: true}
	for i := 0; i < size; i++ {
		r := c.access(addr+uint32(i), 1, false, 0)
		combined.Data |= r.Data << (8 * i)
		combined.mergeTiming(r)
	}
	return combined
}

// Write performs a cache write of the low width bytes of data.
// Uses write-allocate policy: on miss, fetch the block first, then write.
func (c *Cache) Write(addr uint32, width insts.Width, data uint32) AccessResult {
	size := int(width)
	if !c.straddles(addr, size) {
		return c.access(addr, size, true, data)
	}

	combined := AccessResult{Hit: true}
	for i := 0; i < size; i++ {
		r := c.access(addr+uint32(i), 1, true, data>>(8*i))
		combined.mergeTiming(r)
	}
	return combined
}

func (r *AccessResult) mergeTiming(part AccessResult) {
	r.Hit = r.Hit && part.Hit
	if part.Latency > r.Latency {
		r.Latency = part.Latency
	}
	if part.Evicted {
		r.Evicted = true
		r.EvictedAddr = part.EvictedAddr
	}
}

// access services an access that lies within a single block.
func (c *Cache) access(addr uint32, size int, isWrite bool, data uint32) AccessResult {
	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := c.blockAddr(addr)
	offset := int(addr - blockAddr)

	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		result := AccessResult{Hit: true, Latency: c.config.HitLatency}
		blockData := c.dataStore[c.blockIndex(block)]
		if isWrite {
			storeData(blockData, offset, size, data)
			block.IsDirty = true
		} else {
			result.Data = extractData(blockData, offset, size)
		}
		return result
	}

	c.stats.Misses++
	return c.handleMiss(blockAddr, offset, size, isWrite, data)
}

// handleMiss fills a block from the backing store, evicting the LRU victim.
func (c *Cache) handleMiss(blockAddr uint32, offset, size int, isWrite bool, writeData uint32) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	victim := c.directory.FindVictim(uint64(blockAddr))
	if victim == nil {
		return result
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = uint32(victim.Tag)

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(uint32(victim.Tag), victimData)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = false

	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	c.directory.Visit(victim)

	return result
}

// Invalidate marks a cache line as invalid without writeback.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				c.backing.Write(uint32(block.Tag), c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func extractData(data []byte, offset, size int) uint32 {
	var result uint32
	for i := 0; i < size; i++ {
		result |= uint32(data[offset+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset, size int, value uint32) {
	for i := 0; i < size; i++ {
		data[offset+i] = byte(value >> (i * 8))
	}
}
