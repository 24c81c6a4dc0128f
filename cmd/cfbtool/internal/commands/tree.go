package commands

import (
	"strings"

	cfb "github.com/asalih/go-cfb"
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/spf13/cobra"
)

var treeCMD = &cobra.Command{
	Use:   "tree",
	Short: "Print every storage and stream of a compound file",
	Args:  cobra.NoArgs,
	Run:   treeFunc,
}

func init() {
	common.AddFileFlag(treeCMD, &vFile)
}

func treeFunc(cmd *cobra.Command, _ []string) {
	s := common.OpenDocument(cmd, vFile, true)
	defer common.CloseDocument(cmd, s)

	cmd.Println("/")
	err := s.Walk(func(e *cfb.Entry) error {
		depth := strings.Count(e.Path, "/")
		if e.IsStream() {
			cmd.Printf("%s%s (%d)\n", strings.Repeat("  ", depth), e.Name, e.StreamLen)
		} else {
			cmd.Printf("%s%s/\n", strings.Repeat("  ", depth), e.Name)
		}
		return nil
	})
	common.ExitOnErr(cmd, common.Errf("could not walk directory: %w", err))
}
