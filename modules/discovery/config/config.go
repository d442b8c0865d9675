package config

import (
	"time"

	"github.com/veil-network/pool-scanner/internal/postgres"
)

type Config struct {
	Database string          `mapstructure:"database"` // Database to store discovery state. e.g. `postgres` | `memory`
	Postgres postgres.Config `mapstructure:"postgres"`

	// AccountKeyFiles holds paths to account key files (one hex-encoded
	// 32-byte key per file) to scan on each interval.
	AccountKeyFiles []string `mapstructure:"account_key_files"`

	// CacheKeyFile is the path to the ECIES private key used to encrypt
	// persisted discovery state at rest. Empty disables encryption.
	CacheKeyFile string `mapstructure:"cache_key_file"`

	// Pools is the list of shielded pool addresses to scan.
	Pools []string `mapstructure:"pools"`

	// Decimals is the display precision of pool asset amounts.
	Decimals uint8 `mapstructure:"decimals"`

	// ScanInterval is the delay between discovery passes.
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}
