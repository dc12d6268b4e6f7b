package config

const (
	defaultConfigPath        = "~/.config/romident/config.toml"
	defaultCatalogDir        = "~/.local/share/romident/catalogs"
	defaultCatalogEncoding   = "utf-8"
	defaultChecksumChunkKiB  = 1024
	maxChecksumChunkKiB      = 64 * 1024
	defaultMaxArchiveMiB     = 512
	defaultBlockCacheEntries = 16
	defaultHashCacheFile     = "hashes.db"
	defaultMatchCacheFile    = "matches.json"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogDirs: []string{defaultCatalogDir},
			CacheDir:    defaultCacheDir(),
		},
		Catalogs: Catalogs{
			Encoding: defaultCatalogEncoding,
		},
		Identification: Identification{
			Fuzzy:            true,
			PreferSHA1:       true,
			ChecksumChunkKiB: defaultChecksumChunkKiB,
			MaxArchiveMiB:    defaultMaxArchiveMiB,
		},
		HashCache: HashCache{
			Enabled: true,
		},
		MatchCache: MatchCache{
			Enabled: false,
		},
		GCZ: GCZ{
			BlockCacheEntries: defaultBlockCacheEntries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
