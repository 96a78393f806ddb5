package lossreporter

import "github.com/bft-labs/tracemux/pkg/tracemux"

// WithLossReporter returns a tracemux Option that logs channel loss every
// cfg.CheckInterval.
//
// Usage:
//
//	mux, err := tracemux.Init(cfg,
//	    tracemux.WithTransport(sink),
//	    lossreporter.WithLossReporter(lossreporter.Config{
//	        CheckInterval: 30 * time.Second,
//	    }),
//	)
func WithLossReporter(cfg Config) tracemux.Option {
	return tracemux.WithPlugin(New(cfg))
}
