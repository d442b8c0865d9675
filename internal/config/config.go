package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/core/feed"
	discoveryconfig "github.com/veil-network/pool-scanner/modules/discovery/config"
	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
	"github.com/veil-network/pool-scanner/pkg/middleware/requestcontext"
	"github.com/veil-network/pool-scanner/pkg/middleware/requestlogger"
)

var (
	configOnce sync.Once
	config     = &Config{
		Logger: logger.Config{
			Output: "text",
		},
		Network: common.NetworkMainnet,
		HTTPServer: HTTPServer{
			Port: 8080,
		},
	}
)

type Config struct {
	Logger        logger.Config  `mapstructure:"logger"`
	Network       common.Network `mapstructure:"network"`
	APIOnly       bool           `mapstructure:"api_only"`
	EnableModules []string       `mapstructure:"enable_modules"`
	HTTPServer    HTTPServer     `mapstructure:"http_server"`
	Feed          feed.Config    `mapstructure:"feed"`
	Modules       Modules        `mapstructure:"modules"`
}

type HTTPServer struct {
	Port      int                               `mapstructure:"port"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
}

type Modules struct {
	Discovery discoveryconfig.Config `mapstructure:"discovery"`
}

// BindPFlag binds a command-line flag to a configuration key. Must be called
// before Parse.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("Failed to bind flag to configuration", slogx.String("key", key), slogx.Error(err))
	}
}

// Parse reads the configuration from the given file (or ./config.yaml when
// empty), environment variables, and bound flags. Subsequent calls return the
// first result.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
	})

	return *config
}

// Load returns the parsed configuration.
func Load() Config {
	return Parse("")
}
