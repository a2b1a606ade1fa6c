package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeFilter()
	c.normalizeStages()
	c.normalizeBundle()
	c.normalizePublish()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.TemplateDir, err = expandPath(strings.TrimSpace(c.Paths.TemplateDir)); err != nil {
		return fmt.Errorf("paths.template_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Backend = strings.ToLower(strings.TrimSpace(c.Catalog.Backend))
	if c.Catalog.Backend == "" {
		c.Catalog.Backend = defaultCatalogBackend
	}
	if value, ok := os.LookupEnv("IFGSTACK_CATALOG_URL"); ok && strings.TrimSpace(c.Catalog.URL) == "" {
		c.Catalog.URL = value
	}
	c.Catalog.URL = strings.TrimRight(strings.TrimSpace(c.Catalog.URL), "/")
	c.Catalog.Index = strings.TrimSpace(c.Catalog.Index)
	if c.Catalog.Index == "" {
		c.Catalog.Index = defaultCatalogIndex
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
	if strings.TrimSpace(c.Catalog.SQLitePath) == "" {
		c.Catalog.SQLitePath = filepath.Join(c.Paths.StateDir, "catalog.db")
	}
	var err error
	if c.Catalog.SQLitePath, err = expandPath(c.Catalog.SQLitePath); err != nil {
		return fmt.Errorf("catalog.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeFilter() {
	command := make([]string, 0, len(c.Filter.Command))
	for _, arg := range c.Filter.Command {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	c.Filter.Command = command
	if c.Filter.TimeoutSeconds < 0 {
		c.Filter.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeStages() {
	c.Stages.Python = strings.TrimSpace(c.Stages.Python)
	if c.Stages.Python == "" {
		c.Stages.Python = defaultPython
	}
	c.Stages.PrepStackCommand = strings.TrimSpace(c.Stages.PrepStackCommand)
	if c.Stages.PrepStackCommand == "" {
		c.Stages.PrepStackCommand = defaultPrepStackCommand
	}
	c.Stages.ProcessStackCommand = strings.TrimSpace(c.Stages.ProcessStackCommand)
	if c.Stages.ProcessStackCommand == "" {
		c.Stages.ProcessStackCommand = defaultProcessStackCommand
	}
	if c.Stages.TimeoutSeconds < 0 {
		c.Stages.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeBundle() {
	c.Bundle.IDPrefix = strings.TrimSpace(c.Bundle.IDPrefix)
	if c.Bundle.ThumbnailSize <= 0 {
		c.Bundle.ThumbnailSize = defaultThumbnailSize
	}
	if c.Bundle.CompressionLevel == 0 {
		c.Bundle.CompressionLevel = defaultCompressionLevel
	}
	c.Bundle.TimeAxisCommand = strings.TrimSpace(c.Bundle.TimeAxisCommand)
	if c.Bundle.TimeAxisCommand == "" {
		c.Bundle.TimeAxisCommand = defaultTimeAxisCommand
	}
}

func (c *Config) normalizePublish() {
	if c.Publish.Endpoint == "" {
		if value, ok := os.LookupEnv("MINIO_ENDPOINT"); ok {
			c.Publish.Endpoint = value
		}
	}
	if c.Publish.AccessKey == "" {
		if value, ok := os.LookupEnv("MINIO_ACCESS_KEY"); ok {
			c.Publish.AccessKey = value
		}
	}
	if c.Publish.SecretKey == "" {
		if value, ok := os.LookupEnv("MINIO_SECRET_KEY"); ok {
			c.Publish.SecretKey = value
		}
	}
	c.Publish.Endpoint = strings.TrimSpace(c.Publish.Endpoint)
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	c.Publish.Region = strings.TrimSpace(c.Publish.Region)
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
