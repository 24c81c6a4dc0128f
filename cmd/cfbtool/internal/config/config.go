package config

import (
	"errors"
	"fmt"
	"strings"

	cfb "github.com/asalih/go-cfb"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CFBTOOL"

// Configuration keys.
const (
	LoggerLevelKey        = "logger.level"
	StorageValidationKey  = "storage.validation"
	StorageCacheSizeKey   = "storage.cache_size"
	defaultLoggerLevel    = "warn"
	defaultValidation     = "permissive"
	defaultCacheSize      = 256
	defaultConfigFileName = ".cfbtool"
)

// Flag names bound to configuration keys.
const (
	LogLevelFlag   = "log-level"
	ValidationFlag = "validation"
	CacheSizeFlag  = "cache-size"
)

// Init reads the configuration file and environment. Without cfgFile the
// optional $HOME/.cfbtool.yaml is used.
func Init(cfgFile string) error {
	viper.SetDefault(LoggerLevelKey, defaultLoggerLevel)
	viper.SetDefault(StorageValidationKey, defaultValidation)
	viper.SetDefault(StorageCacheSizeKey, defaultCacheSize)

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("could not find home directory: %w", err)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(defaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("could not read config: %w", err)
		}
	}

	return nil
}

// AddFlags defines the persistent flags overriding configuration keys.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(LogLevelFlag, defaultLoggerLevel, "Logger level (debug, info, warn, error)")
	fs.String(ValidationFlag, defaultValidation, "Structure validation on open (permissive, strict)")
	fs.Int(CacheSizeFlag, defaultCacheSize, "Number of sectors kept in the block cache, 0 disables it")
}

// BindFlags binds the flags defined by AddFlags to their keys.
func BindFlags(fs *pflag.FlagSet) error {
	for key, name := range map[string]string{
		LoggerLevelKey:       LogLevelFlag,
		StorageValidationKey: ValidationFlag,
		StorageCacheSizeKey:  CacheSizeFlag,
	} {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

func LogLevel() string {
	return viper.GetString(LoggerLevelKey)
}

// StorageOptions returns the storage options set by the configuration.
func StorageOptions() ([]cfb.Option, error) {
	validation, err := cfb.ParseValidation(viper.GetString(StorageValidationKey))
	if err != nil {
		return nil, err
	}

	size := viper.GetInt(StorageCacheSizeKey)
	if size < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", StorageCacheSizeKey, size)
	}

	return []cfb.Option{
		cfb.WithValidation(validation),
		cfb.WithBlockCacheSize(size),
	}, nil
}
