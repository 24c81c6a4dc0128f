package commands

import (
	"fmt"
	"io"
	"os"

	cfb "github.com/asalih/go-cfb"
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
)

var (
	vOut  string
	vZstd bool
)

var catCMD = &cobra.Command{
	Use:   "cat PATH",
	Short: "Print the content of a stream",
	Args:  cobra.ExactArgs(1),
	Run:   catFunc,
}

func init() {
	common.AddFileFlag(catCMD, &vFile)
	catCMD.Flags().StringVarP(&vOut, "out", "o", "", "Write to file instead of stdout")
	catCMD.Flags().BoolVar(&vZstd, "zstd", false, "Compress the output with zstd")
}

func catFunc(cmd *cobra.Command, args []string) {
	s := common.OpenDocument(cmd, vFile, true)
	defer common.CloseDocument(cmd, s)

	w := cmd.OutOrStdout()
	if vOut != "" {
		f, err := os.Create(vOut)
		common.ExitOnErr(cmd, common.Errf("could not create output file: %w", err))
		defer f.Close()
		w = f
	}

	n, err := copyStream(s, args[0], w, vZstd)
	common.ExitOnErr(cmd, common.Errf("could not read stream: %w", err))

	if vOut != "" {
		cmd.Printf("%d bytes written to %s\n", n, vOut)
	}
}

// copyStream writes the stream at path to w, optionally zstd compressed, and
// returns the number of stream bytes read.
func copyStream(s *cfb.Storage, path string, w io.Writer, compress bool) (int64, error) {
	st, err := s.OpenStream(path)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	if !compress {
		return io.Copy(w, st)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("zstd encoder: %w", err)
	}

	n, err := io.Copy(enc, st)
	if err != nil {
		enc.Close()
		return n, err
	}
	return n, enc.Close()
}
