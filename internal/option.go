package internal

import (
	"io"

	"github.com/starford/folio/internal/contentstore"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	client contentstore.Client
	memory bool
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithClient replaces the GitHub client built from the remote configuration.
func WithClient(c contentstore.Client) Option {
	return func(a *application) {
		a.client = c
	}
}

// WithMemoryStore runs against an in-memory repository that is initialized
// on start. Nothing is published.
func WithMemoryStore() Option {
	return func(a *application) {
		a.memory = true
	}
}

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
