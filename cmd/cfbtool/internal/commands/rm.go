package commands

import (
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/spf13/cobra"
)

var rmCMD = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete a storage or stream",
	Long:  "Delete a storage with everything below it, or a single stream. The directory is written back in place.",
	Args:  cobra.ExactArgs(1),
	Run:   rmFunc,
}

func init() {
	common.AddFileFlag(rmCMD, &vFile)
}

func rmFunc(cmd *cobra.Command, args []string) {
	s := common.OpenDocument(cmd, vFile, false)
	defer common.CloseDocument(cmd, s)

	common.ExitOnErr(cmd, common.Errf("could not delete entry: %w", s.DeleteEntry(args[0])))
	cmd.Printf("%s deleted\n", args[0])
}
