package crate

import "github.com/TheBitDrifter/mask"

// Config holds process-wide defaults new registries are built from.
// Per-registry overrides are passed explicitly to NewRegistry; Config
// only supplies defaults for callers that don't.
var Config config = config{
	EntityPool: EntityPoolConfig{
		SegmentSize:      1024,
		AutoRelease:      false,
		MaxEmptySegments: 4,
	},
	ChunkPool: ChunkPoolConfig{
		ChunksPerBlock: 64,
		MaxChunks:      1 << 16,
		InitialBlocks:  1,
		UseHugePages:   false,
	},
	RelationshipCapacity: 64,
	SignalMask:           mask.Mask256{},
}

type config struct {
	EntityPool           EntityPoolConfig
	ChunkPool            ChunkPoolConfig
	RelationshipCapacity int
	// SignalMask is copied into each Registry built from DefaultConfig.
	// Hook dispatch does not read it: every hook set in Hooks fires
	// whatever the mask holds, and an unset hook is a no-op.
	SignalMask mask.Mask256
}

// SetEntityPoolDefaults overrides the default entity pool configuration
// that DefaultConfig copies into each RegistryConfig it returns.
func (c *config) SetEntityPoolDefaults(cfg EntityPoolConfig) {
	c.EntityPool = cfg
}

// SetChunkPoolDefaults overrides the default chunk pool configuration.
func (c *config) SetChunkPoolDefaults(cfg ChunkPoolConfig) {
	c.ChunkPool = cfg
}

// ChunkPoolConfig configures the page allocator backing archetype chunks.
type ChunkPoolConfig struct {
	ChunksPerBlock int
	MaxChunks      int
	InitialBlocks  int
	UseHugePages   bool
}

// RegistryConfig bundles the configuration surface exposed at
// NewRegistry time.
type RegistryConfig struct {
	EntityPool           EntityPoolConfig
	ChunkPool            ChunkPoolConfig
	RelationshipCapacity int
	SignalMask           mask.Mask256
	Hooks                Hooks
}

// DefaultConfig returns a RegistryConfig seeded from the package-level
// Config defaults.
func DefaultConfig() RegistryConfig {
	return RegistryConfig{
		EntityPool:           Config.EntityPool,
		ChunkPool:            Config.ChunkPool,
		RelationshipCapacity: Config.RelationshipCapacity,
		SignalMask:           Config.SignalMask,
	}
}

// CleanupOptions parameterizes ArchetypeManager.CleanupEmptyArchetypes.
type CleanupOptions struct {
	// MinEmptyDuration is the number of registry ticks an archetype must
	// have been continuously empty before it becomes eligible.
	MinEmptyDuration int64
	// MinArchetypesToKeep is a floor on the number of archetypes
	// (including the root) that cleanup will never go below.
	MinArchetypesToKeep int
	// MaxArchetypesToRemove caps how many archetypes a single call frees.
	MaxArchetypesToRemove int
}
