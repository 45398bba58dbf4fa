package config

// AppConfig is the root of the runtime configuration, populated from the
// environment via github.com/caarlos0/env. Each embedded section lives in
// its own file alongside the variables it reads: database.go, storage.go,
// provider.go, services.go.
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, relaxed guards).
	// Set DEV=true for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Blob store configuration
	Storage StorageConfig `envPrefix:"STORAGE_"`

	// OCR provider configuration
	Provider ProviderConfig `envPrefix:"OCR_PROVIDER_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"queue"`

	// Queue worker configuration
	Queue QueueConfig

	// Document preprocessing configuration
	Preprocess PreprocessConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize clamps out-of-range values after env parsing. Call it once,
// right after loading.
func (c *AppConfig) Sanitize() {
	c.Cache.Sanitize()
	c.Storage.Sanitize()
	c.Provider.Sanitize()
	c.Queue.Sanitize()
	c.Preprocess.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices parses the SERVICES list into a mode set.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsQueueEnabled reports whether the queue worker mode is selected.
func (c *AppConfig) IsQueueEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeQueue]
}

// IsReaperEnabled reports whether the reaper mode is selected.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
