package tracemux

import "context"

// Plugin extends a Tracemux instance with optional behavior.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize is called by Init after the multiplexer is running.
	// Returning an error aborts Init.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Deinit before the multiplexer drains.
	Shutdown(ctx context.Context) error
}

// Controller is the part of a Tracemux instance plugins may drive.
type Controller interface {
	Policy() FlushPolicy
	Reconfigure(p FlushPolicy) error
	Stats() []ChannelStats
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	Config     Config
	Logger     Logger
	Controller Controller
}

// BasePlugin provides no-op implementations for embedding.
type BasePlugin struct{}

// Name returns "base".
func (BasePlugin) Name() string { return "base" }

// Initialize does nothing.
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }

// Shutdown does nothing.
func (BasePlugin) Shutdown(context.Context) error { return nil }
