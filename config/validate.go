package config

import (
	"errors"
	"fmt"

	"github.com/unruly-software/api/codec"
)

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}

	if c.Frame.Addr != "" {
		if _, err := codec.Parse(c.Frame.Codec); err != nil {
			errs = append(errs, fmt.Errorf("frame.codec: %w", err))
		}
	}

	switch c.Registry.Type {
	case "none", "memory":
	case "etcd":
		if len(c.Registry.Endpoints) == 0 {
			errs = append(errs, errors.New("registry.endpoints is required when registry.type is \"etcd\""))
		}
	default:
		errs = append(errs, fmt.Errorf("registry.type must be \"none\", \"memory\" or \"etcd\", got %q", c.Registry.Type))
	}
	if c.Registry.Type != "none" && c.Registry.Service == "" {
		errs = append(errs, errors.New("registry.service is required"))
	}

	switch c.NATS.Mode {
	case "off", "embedded":
	case "external":
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required when nats.mode is \"external\""))
		}
	default:
		errs = append(errs, fmt.Errorf("nats.mode must be \"off\", \"embedded\" or \"external\", got %q", c.NATS.Mode))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	return errors.Join(errs...)
}
