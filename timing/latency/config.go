package latency

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid timing config")

// MaxStructureSize bounds every buffer capacity. Tags are reorder buffer
// indices and are stored in a byte.
const MaxStructureSize = 255

// MaxHistoryBits bounds the per-entry pattern history of the predictor.
const MaxHistoryBits = 8

// TimingConfig holds latency values and structure sizes of the core.
type TimingConfig struct {
	// LoadLatency is the memory port countdown for a load served directly
	// by main memory. Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// BranchMispredictPenalty is the number of extra fetch bubbles after a
	// squash. Default: 0 cycles (fetch restarts the cycle after commit).
	BranchMispredictPenalty uint64 `json:"branch_mispredict_penalty"`

	// ROBSize is the reorder buffer capacity. Default: 32 entries.
	ROBSize int `json:"rob_size"`

	// RSSize is the reservation station capacity. Default: 32 entries.
	RSSize int `json:"rs_size"`

	// LSQSize is the load/store queue capacity. Default: 16 entries.
	LSQSize int `json:"lsq_size"`

	// BHTBits is the number of PC bits indexing the predictor table.
	// Default: 12 (4096 entries).
	BHTBits int `json:"bht_bits"`

	// HistoryBits is the pattern history length kept per predictor entry.
	// Default: 4.
	HistoryBits int `json:"history_bits"`

	// MaxCycles aborts a run that has not halted after this many cycles.
	// Default: 0 (unlimited).
	MaxCycles uint64 `json:"max_cycles"`

	// L1D configures the optional data cache on the load/store queue port.
	L1D CacheConfig `json:"l1d"`
}

// CacheConfig holds the geometry and latencies of the optional data cache.
type CacheConfig struct {
	Size          int    `json:"size"`
	Associativity int    `json:"associativity"`
	BlockSize     int    `json:"block_size"`
	HitLatency    uint64 `json:"hit_latency"`
	MissLatency   uint64 `json:"miss_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default core geometry.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		LoadLatency:             3,
		BranchMispredictPenalty: 0,
		ROBSize:                 32,
		RSSize:                  32,
		LSQSize:                 16,
		BHTBits:                 12,
		HistoryBits:             4,
		MaxCycles:               0,
		L1D: CacheConfig{
			Size:          16 * 1024,
			Associativity: 4,
			BlockSize:     32,
			HitLatency:    2,
			MissLatency:   10,
		},
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Keys missing from the
// file keep their default values. The result is validated.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a buildable core.
func (c *TimingConfig) Validate() error {
	if c.LoadLatency == 0 {
		return fmt.Errorf("%w: load_latency must be > 0", ErrInvalidConfig)
	}
	if err := checkSize("rob_size", c.ROBSize); err != nil {
		return err
	}
	if err := checkSize("rs_size", c.RSSize); err != nil {
		return err
	}
	if err := checkSize("lsq_size", c.LSQSize); err != nil {
		return err
	}
	if c.BHTBits <= 0 || c.BHTBits > 20 {
		return fmt.Errorf("%w: bht_bits must be in [1, 20]", ErrInvalidConfig)
	}
	if c.HistoryBits <= 0 || c.HistoryBits > MaxHistoryBits {
		return fmt.Errorf("%w: history_bits must be in [1, %d]", ErrInvalidConfig, MaxHistoryBits)
	}
	return c.L1D.Validate()
}

// Validate checks the cache geometry.
func (c CacheConfig) Validate() error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("%w: l1d geometry must be positive", ErrInvalidConfig)
	}
	if c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("%w: l1d block_size must be a power of two", ErrInvalidConfig)
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("%w: l1d size must be a multiple of associativity * block_size", ErrInvalidConfig)
	}
	if c.HitLatency == 0 || c.MissLatency < c.HitLatency {
		return fmt.Errorf("%w: l1d latencies must satisfy 0 < hit_latency <= miss_latency", ErrInvalidConfig)
	}
	return nil
}

func checkSize(name string, v int) error {
	if v <= 0 || v > MaxStructureSize {
		return fmt.Errorf("%w: %s must be in [1, %d]", ErrInvalidConfig, name, MaxStructureSize)
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
