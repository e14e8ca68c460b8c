package internal

// Option configures the Raido application before Run or RunMCP starts it.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig sets the loaded configuration. Required by both entrypoints.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
