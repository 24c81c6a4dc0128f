package commands

import (
	"fmt"

	cfb "github.com/asalih/go-cfb"
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var vLong bool

var lsCMD = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List the children of a storage",
	Args:  cobra.MaximumNArgs(1),
	Run:   lsFunc,
}

func init() {
	common.AddFileFlag(lsCMD, &vFile)
	lsCMD.Flags().BoolVarP(&vLong, "long", "l", false, "Print a table with entry details")
}

func lsFunc(cmd *cobra.Command, args []string) {
	s := common.OpenDocument(cmd, vFile, true)
	defer common.CloseDocument(cmd, s)

	if len(args) > 0 {
		common.ExitOnErr(cmd, common.Errf("could not enter storage: %w", s.EnterDirectory(args[0])))
	}

	printEntries(cmd, s.ListEntries(), vLong)
}

func typeString(e *cfb.Entry) string {
	switch {
	case e.IsStorage():
		return "storage"
	case e.IsStream():
		return "stream"
	case e.IsRoot():
		return "root"
	default:
		return e.ObjType.String()
	}
}

func printEntries(cmd *cobra.Command, entries []*cfb.Entry, long bool) {
	if !long {
		for _, e := range entries {
			name := e.Name
			if !e.IsStream() {
				name += "/"
			}
			cmd.Println(name)
		}
		return
	}

	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"Name", "Type", "Size", "Start", "CLSID"})
	out.SetAutoWrapText(false)

	for _, e := range entries {
		out.Append([]string{
			e.Name,
			typeString(e),
			fmt.Sprint(e.StreamLen),
			sectorString(e.StartingSector),
			e.CLSID.String(),
		})
	}

	out.Render()
}
