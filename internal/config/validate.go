package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateBundle(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Backend {
	case CatalogHTTP:
		if c.Catalog.URL == "" {
			return errors.New("catalog.url is required for the http backend. Set IFGSTACK_CATALOG_URL or edit the config (create with 'ifgstack config init')")
		}
		if !strings.HasPrefix(c.Catalog.URL, "http://") && !strings.HasPrefix(c.Catalog.URL, "https://") {
			return fmt.Errorf("catalog.url must be an http(s) URL, got %q", c.Catalog.URL)
		}
	case CatalogSQLite:
		if c.Catalog.SQLitePath == "" {
			return errors.New("catalog.sqlite_path must be set")
		}
	default:
		return fmt.Errorf("catalog.backend: unsupported value %q (want %q or %q)", c.Catalog.Backend, CatalogHTTP, CatalogSQLite)
	}
	return nil
}

func (c *Config) validateFilter() error {
	if len(c.Filter.Command) == 0 {
		return errors.New("filter.command must name the filter executable")
	}
	return nil
}

func (c *Config) validateBundle() error {
	if strings.ContainsAny(c.Bundle.IDPrefix, "/\\") {
		return fmt.Errorf("bundle.id_prefix must not contain path separators, got %q", c.Bundle.IDPrefix)
	}
	if c.Bundle.CompressionLevel < -2 || c.Bundle.CompressionLevel > 9 {
		return fmt.Errorf("bundle.compression_level must be between -2 and 9, got %d", c.Bundle.CompressionLevel)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Endpoint == "" {
		return errors.New("publish.endpoint is required when publish is enabled (or set MINIO_ENDPOINT)")
	}
	if c.Publish.Bucket == "" {
		return errors.New("publish.bucket is required when publish is enabled")
	}
	if c.Publish.AccessKey == "" || c.Publish.SecretKey == "" {
		return errors.New("publish credentials missing. Set MINIO_ACCESS_KEY and MINIO_SECRET_KEY or edit the config")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
