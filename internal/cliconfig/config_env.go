package cliconfig

import "os"

// EnvPrefix is the prefix of every environment variable read by ApplyEnvConfig.
const EnvPrefix = "TRACEMUX_"

// ApplyEnvConfig applies TRACEMUX_* environment variables to cfg.
// Flags that have been explicitly set (changed map) are left alone.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("transport", env("TRANSPORT"), &cfg.Transport)
	s.setString("output", env("OUTPUT"), &cfg.Output)
	s.setString("device", env("DEVICE"), &cfg.Device)
	s.setString("broker", env("BROKER_URL"), &cfg.BrokerURL)
	s.setString("topic", env("TOPIC"), &cfg.Topic)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	ints := []struct {
		flag, name string
		dst        *int
	}{
		{"baud", "BAUD", &cfg.Baud},
		{"qos", "QOS", &cfg.QoS},
		{"queue-depth", "QUEUE_DEPTH", &cfg.QueueDepth},
		{"user-buffer", "USER_BUFFER_SIZE", &cfg.UserBufferSize},
		{"task-buffer", "TASK_BUFFER_SIZE", &cfg.TaskBufferSize},
		{"isr-buffer", "ISR_BUFFER_SIZE", &cfg.ISRBufferSize},
		{"hci-buffer", "HCI_BUFFER_SIZE", &cfg.HCIBufferSize},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, env(i.name), i.dst); err != nil {
			return err
		}
	}

	if err := s.setDuration("flush-interval", env("FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("idle-timeout", env("IDLE_TIMEOUT"), &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", env("DRAIN_TIMEOUT"), &cfg.DrainTimeout); err != nil {
		return err
	}
	if err := s.setDuration("demo-interval", env("DEMO_INTERVAL"), &cfg.DemoInterval); err != nil {
		return err
	}

	s.setBoolFromString("demo", env("DEMO"), &cfg.Demo)
	s.setBoolFromString("dump-on-exit", env("DUMP_ON_EXIT"), &cfg.DumpOnExit)
	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)
	s.setBoolFromString("pace", env("PACE"), &cfg.Pace)

	return nil
}
