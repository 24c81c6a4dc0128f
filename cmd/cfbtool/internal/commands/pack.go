package commands

import (
	"fmt"
	"os"
	"path/filepath"

	cfb "github.com/asalih/go-cfb"
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var packCMD = &cobra.Command{
	Use:   "pack DIR OUT",
	Short: "Build a compound file from a directory tree",
	Long:  "Build a compound file from a directory tree: directories become storages and regular files become streams.",
	Args:  cobra.ExactArgs(2),
	Run:   packFunc,
}

func packFunc(cmd *cobra.Command, args []string) {
	log := common.Logger(cmd)

	b, err := packDir(afero.NewOsFs(), args[0], log)
	common.ExitOnErr(cmd, err)

	common.ExitOnErr(cmd, common.Errf("could not write compound file: %w", b.Save(afero.NewOsFs(), args[1])))
	cmd.Printf("%s written\n", args[1])
}

// packDir adds every directory below root as a storage and every regular
// file as a stream.
func packDir(fs afero.Fs, root string, log *zap.Logger) (*cfb.Builder, error) {
	b := cfb.NewBuilder()

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := "/" + filepath.ToSlash(rel)

		switch {
		case info.IsDir():
			return b.AddStorage(name)
		case info.Mode().IsRegular():
			data, err := afero.ReadFile(fs, path)
			if err != nil {
				return err
			}
			log.Debug("adding stream", zap.String("path", name), zap.Int("size", len(data)))
			return b.AddStream(name, data)
		default:
			log.Warn("skipping special file", zap.String("path", path))
			return nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not pack %s: %w", root, err)
	}

	return b, nil
}
