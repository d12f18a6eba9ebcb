package model

// Cfg is the main configuration structure for the library
type Cfg struct {
	Common CommonCfg `yaml:"common" validate:"required"`
}

// CommonCfg holds settings shared by every consumer of the core
type CommonCfg struct {
	Production bool       `yaml:"production"`
	LogPath    string     `yaml:"log_path"`
	Tracing    TracingCfg `yaml:"tracing"`
	Pool       PoolCfg    `yaml:"pool"`
	HSM        HSMCfg     `yaml:"hsm"`
}

// TracingCfg configures the OTLP trace exporter
type TracingCfg struct {
	Addr    string `yaml:"addr" validate:"omitempty,hostname_port"`
	Timeout int    `yaml:"timeout" default:"10"`
}

// PoolCfg configures the sensitive memory pool
type PoolCfg struct {
	// MaxBuffers bounds the number of simultaneously rented buffers, 0 means unbounded
	MaxBuffers int `yaml:"max_buffers" default:"0"`
}

// HSMCfg configures the optional PKCS#11 backend
type HSMCfg struct {
	Enabled    bool   `yaml:"enabled"`
	ModulePath string `yaml:"module_path" validate:"required_if=Enabled true"`
	SlotID     uint   `yaml:"slot_id"`
	PIN        string `yaml:"pin"`
	KeyLabel   string `yaml:"key_label"`
}
