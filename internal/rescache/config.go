package rescache

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid cache config")

// Config holds ResourceCache tuning.
type Config struct {
	// MemoryBudgetBytes is a soft budget: eviction runs before an insert that
	// would exceed it, but referenced entries are never evicted to make room.
	MemoryBudgetBytes int64 `yaml:"memory_budget_bytes"`

	// RetainUnreferenced keeps entries resident after their last Release so
	// they can be reused until LRU eviction needs the room. When false an
	// entry is disposed as soon as its reference count drops to zero.
	RetainUnreferenced bool `yaml:"retain_unreferenced"`
}

// DefaultConfig returns a 256 MiB budget with unreferenced retention.
func DefaultConfig() Config {
	return Config{
		MemoryBudgetBytes:  256 << 20,
		RetainUnreferenced: true,
	}
}

// Validate checks config constraints.
func (c Config) Validate() error {
	if c.MemoryBudgetBytes <= 0 {
		return fmt.Errorf("%w: memory_budget_bytes must be positive, got %d", ErrInvalidConfig, c.MemoryBudgetBytes)
	}
	return nil
}
