package config

// Config is the umbrella configuration object encapsulating every
// configuration document and default set used by the pipeline. It is the
// primary object returned by Initialize() and passed, read-only, through
// every component's constructor (§9 design note: explicit process-wide
// context object, not global singletons).
type Config struct {
	configDir string

	Defaults   *Defaults
	Retention  *RetentionConfig
	Scheduler  *SchedulerConfig
	Infra      *InfraConfig
	Sectors    *SectorDocument
	Geo        *GeoDocument
	Compliance *ComplianceDocument
	Profile    *ProfileDefaults
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }

// ConfigStats contains statistics about loaded configuration, surfaced on
// the detailed health endpoint (§4.11).
type ConfigStats struct {
	Sectors    int
	Regions    int
	Rules      int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Sectors: len(c.Sectors.Sectors),
		Regions: len(c.Geo.Regions),
		Rules:   len(c.Compliance.Rules),
	}
}

// GetSector retrieves a sector configuration by key.
func (c *Config) GetSector(key string) (SectorConfig, bool) {
	s, ok := c.Sectors.Sectors[key]
	return s, ok
}

// GetRegion retrieves a region configuration by key.
func (c *Config) GetRegion(key string) (RegionConfig, bool) {
	r, ok := c.Geo.Regions[key]
	return r, ok
}
