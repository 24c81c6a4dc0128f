package commands

import (
	"fmt"

	cfb "github.com/asalih/go-cfb"
	common "github.com/asalih/go-cfb/cmd/cfbtool/internal/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var vYAML bool

var infoCMD = &cobra.Command{
	Use:   "info",
	Short: "Print the header of a compound file",
	Args:  cobra.NoArgs,
	Run:   infoFunc,
}

type headerInfo struct {
	Version            string `yaml:"version"`
	SectorSize         int    `yaml:"sector_size"`
	MiniSectorSize     int    `yaml:"mini_sector_size"`
	MiniStreamCutoff   uint32 `yaml:"mini_stream_cutoff"`
	FatSectors         uint32 `yaml:"fat_sectors"`
	FirstDirSector     string `yaml:"first_dir_sector"`
	MinifatSectors     uint32 `yaml:"minifat_sectors"`
	FirstMinifatSector string `yaml:"first_minifat_sector"`
	DifatSectors       uint32 `yaml:"difat_sectors"`
	FirstDifatSector   string `yaml:"first_difat_sector"`
	Storages           int    `yaml:"storages"`
	Streams            int    `yaml:"streams"`
	StreamBytes        uint64 `yaml:"stream_bytes"`
}

func init() {
	common.AddFileFlag(infoCMD, &vFile)
	infoCMD.Flags().BoolVar(&vYAML, "yaml", false, "Print as YAML")
}

func sectorString(id uint32) string {
	switch id {
	case cfb.END_OF_CHAIN:
		return "end of chain"
	case cfb.FREE_SECTOR:
		return "free"
	default:
		return fmt.Sprint(id)
	}
}

func infoFunc(cmd *cobra.Command, _ []string) {
	s := common.OpenDocument(cmd, vFile, true)
	defer common.CloseDocument(cmd, s)

	h := s.Header()
	info := headerInfo{
		Version:            fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion),
		SectorSize:         h.SectorLen(),
		MiniSectorSize:     h.MiniSectorLen(),
		MiniStreamCutoff:   h.MiniStreamCutoff,
		FatSectors:         h.NumFatSectors,
		FirstDirSector:     sectorString(h.FirstDirSector),
		MinifatSectors:     h.NumMinifatSectors,
		FirstMinifatSector: sectorString(h.FirstMinifatSector),
		DifatSectors:       h.NumDifatSectors,
		FirstDifatSector:   sectorString(h.FirstDifatSector),
	}

	err := s.Walk(func(e *cfb.Entry) error {
		if e.IsStorage() {
			info.Storages++
		} else if e.IsStream() {
			info.Streams++
			info.StreamBytes += e.StreamLen
		}
		return nil
	})
	common.ExitOnErr(cmd, common.Errf("could not walk directory: %w", err))

	if vYAML {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		common.ExitOnErr(cmd, common.Errf("could not encode header: %w", enc.Encode(info)))
		common.ExitOnErr(cmd, enc.Close())
		return
	}

	cmd.Printf("Version: %s\n", info.Version)
	cmd.Printf("Sector size: %d\n", info.SectorSize)
	cmd.Printf("Mini sector size: %d\n", info.MiniSectorSize)
	cmd.Printf("Mini stream cutoff: %d\n", info.MiniStreamCutoff)
	cmd.Printf("FAT sectors: %d\n", info.FatSectors)
	cmd.Printf("First directory sector: %s\n", info.FirstDirSector)
	cmd.Printf("MiniFAT sectors: %d (first: %s)\n", info.MinifatSectors, info.FirstMinifatSector)
	cmd.Printf("DIFAT sectors: %d (first: %s)\n", info.DifatSectors, info.FirstDifatSector)
	cmd.Printf("Storages: %d, streams: %d (%d bytes)\n", info.Storages, info.Streams, info.StreamBytes)
}
