package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestStorageOptions(t *testing.T) {
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse([]string{"--validation", "strict", "--cache-size", "16"}))

	opts, err := StorageOptions()
	require.NoError(t, err)
	require.Len(t, opts, 2)
	require.Equal(t, "warn", LogLevel())

	require.NoError(t, fs.Set(ValidationFlag, "paranoid"))
	_, err = StorageOptions()
	require.Error(t, err)

	require.NoError(t, fs.Set(ValidationFlag, "permissive"))
	require.NoError(t, fs.Set(CacheSizeFlag, "-1"))
	_, err = StorageOptions()
	require.Error(t, err)
}

func TestInitConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "cfbtool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\nstorage:\n  validation: strict\n"), 0o644))
	t.Setenv("CFBTOOL_LOGGER_LEVEL", "debug")

	require.NoError(t, Init(path))
	require.Equal(t, "debug", LogLevel())
	require.Equal(t, "strict", viper.GetString(StorageValidationKey))
	require.Equal(t, defaultCacheSize, viper.GetInt(StorageCacheSizeKey))

	require.Error(t, Init(filepath.Join(t.TempDir(), "missing.yaml")))
}
