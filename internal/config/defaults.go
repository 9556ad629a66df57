package config

const (
	defaultConfigPath      = "~/.config/imgpkg/config.toml"
	projectConfigName      = "imgpkg.toml"
	defaultPackagesDir     = "~/images/packages"
	defaultStateDir        = "~/.local/share/imgpkg"
	defaultLogDir          = "~/.local/share/imgpkg/logs"
	defaultFixity          = "sha1"
	BuiltinProfile         = "builtin:srgb"
	defaultPreviewWidth    = 800
	defaultPreviewHeight   = 600
	defaultThumbnailWidth  = 128
	defaultThumbnailHeight = 128
	defaultJPEGQuality     = 80
	defaultPreshrinkFactor = 3
	defaultExifBinary      = "exiftool"
	defaultExifTimeout     = 60
	defaultTimezone        = "America/New_York"
	defaultAgent           = "imgpkg"
	defaultBatchWorkers    = 4
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PackagesDir: defaultPackagesDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Fixity: Fixity{Algorithm: defaultFixity},
		Imaging: Imaging{
			TargetProfile:       BuiltinProfile,
			DefaultInputProfile: BuiltinProfile,
			PreviewWidth:        defaultPreviewWidth,
			PreviewHeight:       defaultPreviewHeight,
			ThumbnailWidth:      defaultThumbnailWidth,
			ThumbnailHeight:     defaultThumbnailHeight,
			JPEGQuality:         defaultJPEGQuality,
			PreshrinkFactor:     defaultPreshrinkFactor,
		},
		Exif: Exif{
			Enabled:        true,
			Binary:         defaultExifBinary,
			TimeoutSeconds: defaultExifTimeout,
		},
		History: History{
			Timezone: defaultTimezone,
			Agent:    defaultAgent,
		},
		Batch: Batch{
			Workers: defaultBatchWorkers,
		},
		Catalog: Catalog{Enabled: true},
		PhotoHost: PhotoHost{
			DryRun: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
