package commands

import (
	"github.com/spf13/cobra"
)

var vFile string

// Commands returns every document command of the tool.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		infoCMD,
		lsCMD,
		treeCMD,
		catCMD,
		rmCMD,
		packCMD,
		shellCMD,
	}
}
