package common

import (
	"fmt"
	"os"

	cfb "github.com/asalih/go-cfb"
	"github.com/asalih/go-cfb/cmd/cfbtool/internal/config"
	"github.com/asalih/go-cfb/cmd/cfbtool/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const fileFlagName = "file"

// Errf returns formatted error in errFmt format if err is not nil.
func Errf(errFmt string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf(errFmt, err)
}

// ExitOnErr calls exitOnErrCode with code 1.
func ExitOnErr(cmd *cobra.Command, err error) {
	exitOnErrCode(cmd, err, 1)
}

// exitOnErrCode prints error via cmd and calls os.Exit with passed exit code.
// Does nothing if err is nil.
func exitOnErrCode(cmd *cobra.Command, err error, code int) {
	if err != nil {
		cmd.PrintErrln(err)
		os.Exit(code)
	}
}

// AddFileFlag adds the required flag naming the compound file.
func AddFileFlag(cmd *cobra.Command, v *string) {
	cmd.Flags().StringVarP(v, fileFlagName, "f", "", "Path to the compound file")
	err := cmd.MarkFlagRequired(fileFlagName)
	if err != nil {
		panic(fmt.Errorf("mark required flag %s failed: %w", fileFlagName, err))
	}
}

// Logger builds the logger configured for the tool.
func Logger(cmd *cobra.Command) *zap.Logger {
	log, err := logger.New(config.LogLevel())
	ExitOnErr(cmd, Errf("could not create logger: %w", err))

	return log
}

// OpenDocument opens the compound file at path with the configured storage
// options.
func OpenDocument(cmd *cobra.Command, path string, readOnly bool) *cfb.Storage {
	opts, err := config.StorageOptions()
	ExitOnErr(cmd, Errf("invalid configuration: %w", err))

	opts = append(opts, cfb.WithLogger(Logger(cmd)))
	if readOnly {
		opts = append(opts, cfb.WithReadOnly())
	}

	s, err := cfb.OpenFile(path, opts...)
	ExitOnErr(cmd, Errf("could not open compound file: %w", err))

	return s
}

// CloseDocument closes s and exits on failure.
func CloseDocument(cmd *cobra.Command, s *cfb.Storage) {
	ExitOnErr(cmd, Errf("could not close compound file: %w", s.Close()))
}
