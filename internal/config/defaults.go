package config

const (
	defaultConfigPath          = "~/.config/ifgstack/config.toml"
	defaultStateDir            = "~/.local/state/ifgstack"
	defaultCatalogBackend      = CatalogSQLite
	defaultCatalogIndex        = "grq_v0.1_ifg-stack"
	defaultCatalogTimeout      = 30
	defaultPython              = "python2"
	defaultPrepStackCommand    = "PrepIgramStackWrapper.py"
	defaultProcessStackCommand = "ProcessStackWrapper.py"
	defaultThumbnailSize       = 250
	defaultCompressionLevel    = 9
	defaultTimeAxisCommand     = "h5dump"
	defaultPublishPrefix       = "ifg-stack"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Catalog backends.
const (
	CatalogHTTP   = "http"
	CatalogSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Catalog: Catalog{
			Backend:        defaultCatalogBackend,
			Index:          defaultCatalogIndex,
			TimeoutSeconds: defaultCatalogTimeout,
		},
		Filter: Filter{
			Command: []string{"filter-ifgs"},
		},
		Stages: Stages{
			Python:              defaultPython,
			PrepStackCommand:    defaultPrepStackCommand,
			ProcessStackCommand: defaultProcessStackCommand,
		},
		Bundle: Bundle{
			ThumbnailSize:    defaultThumbnailSize,
			CompressionLevel: defaultCompressionLevel,
			TimeAxisCommand:  defaultTimeAxisCommand,
			NetworkPlot:      true,
		},
		Publish: Publish{
			Prefix: defaultPublishPrefix,
			UseSSL: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
