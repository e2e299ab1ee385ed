// Package config holds the settings of the userapi service.
package config

import (
	"time"
)

type Config struct {
	Logging  Logging  `yaml:"logging"`
	HTTP     HTTP     `yaml:"http"`
	Frame    Frame    `yaml:"frame"`
	Registry Registry `yaml:"registry"`
	NATS     NATS     `yaml:"nats"`
	Storage  Storage  `yaml:"storage"`
}

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// StatusErrors maps errors to status codes instead of answering 500.
	StatusErrors bool `yaml:"status_errors"`
}

// Frame configures the TCP frame transport server. An empty Addr disables it.
type Frame struct {
	Addr    string `yaml:"addr"`
	Codec   string `yaml:"codec"`
	MaxBody uint32 `yaml:"max_body"`
}

type Registry struct {
	Type        string        `yaml:"type"` // none, memory, etcd
	Service     string        `yaml:"service"`
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	TTL         time.Duration `yaml:"ttl"`
	// AdvertiseAddr is registered instead of the listen address when set.
	AdvertiseAddr string `yaml:"advertise_addr"`
	Weight        int    `yaml:"weight"`
}

type NATS struct {
	Mode  string `yaml:"mode"` // off, embedded, external
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type Storage struct {
	Type string `yaml:"type"` // memory, postgres
	DSN  string `yaml:"dsn"`
}

func Defaults() Config {
	return Config{
		Logging: Logging{Level: "info", Format: "text"},
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 5 * time.Second,
		},
		Frame: Frame{
			Addr:    ":9090",
			Codec:   "json",
			MaxBody: 4 << 20,
		},
		Registry: Registry{
			Type:        "memory",
			Service:     "userapi",
			DialTimeout: 5 * time.Second,
			TTL:         10 * time.Second,
			Weight:      1,
		},
		NATS: NATS{
			Mode:  "off",
			Queue: "userapi",
		},
		Storage: Storage{Type: "memory"},
	}
}
