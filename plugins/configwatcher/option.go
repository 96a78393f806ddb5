package configwatcher

import "github.com/bft-labs/tracemux/pkg/tracemux"

// WithConfigWatcher returns a tracemux Option that reloads the flush policy
// whenever cfg.Path changes.
//
// Usage:
//
//	mux, err := tracemux.Init(cfg,
//	    tracemux.WithTransport(sink),
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/tracemux/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) tracemux.Option {
	return tracemux.WithPlugin(New(cfg))
}
