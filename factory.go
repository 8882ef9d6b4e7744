package crate

// factory implements the factory pattern for crate's top-level types.
type factory struct{}

// Factory is the global factory instance for constructing registries,
// pools and component registries.
var Factory factory

// NewRegistry builds a Registry from cfg with a private component
// registry.
func (f factory) NewRegistry(cfg RegistryConfig) *Registry {
	return NewRegistry(cfg)
}

// NewRegistryWithComponents builds a Registry sharing components with
// registries built from the same *ComponentRegistry.
func (f factory) NewRegistryWithComponents(cfg RegistryConfig, components *ComponentRegistry) *Registry {
	return NewRegistryWithComponents(cfg, components)
}

// NewComponentRegistry returns an empty component registry, suitable for
// sharing across several Registry values.
func (f factory) NewComponentRegistry() *ComponentRegistry {
	return NewComponentRegistry()
}

// NewEntityPool builds a standalone entity pool with cfg.
func (f factory) NewEntityPool(cfg EntityPoolConfig) *EntityPool {
	return NewEntityPool(cfg)
}
