package main

import (
	"os"

	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/asalih/go-cfb/cmd/cfbtool/internal/commands"
	"github.com/asalih/go-cfb/cmd/cfbtool/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

var command = &cobra.Command{
	Use:   "cfbtool",
	Short: "Compound File Binary Format tool",
	Long: `cfbtool inspects and edits OLE compound files (.doc, .xls, .msi and others):
it lists storages, extracts streams, deletes entries and packs directory
trees into new documents.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		common.ExitOnErr(cmd, config.Init(cfgFile))
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// use stdout as default output for cmd.Print()
	command.SetOut(os.Stdout)

	flags := command.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.cfbtool.yaml)")
	config.AddFlags(flags)
	if err := config.BindFlags(flags); err != nil {
		panic(err)
	}

	command.AddCommand(commands.Commands()...)
}

func main() {
	err := command.Execute()
	if err != nil {
		command.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
