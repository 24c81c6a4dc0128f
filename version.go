package cfb

import "fmt"

const (
	V3 Version = 3
	V4 Version = 4
)

type Version int

func VersionNumber(v uint16) (Version, error) {
	switch v {
	case 3:
		return V3, nil
	case 4:
		return V4, nil
	default:
		return 0, fmt.Errorf("invalid version number: %v", v)
	}
}

// VersionForShift returns the major version matching a sector shift. Shifts
// other than the V4 one are written as V3.
func VersionForShift(shift uint16) Version {
	if shift == V4.SectorShift() {
		return V4
	}
	return V3
}

// Returns the sector shift used in this version.
func (v Version) SectorShift() uint16 {
	return uint16(v * 3)
}

// Returns the length of sectors used in this version.
func (v Version) SectorLen() int {
	return 1 << v.SectorShift()
}

// Returns the number of directory entries per sector in this version.
func (v Version) DirEntriesPerSector() int {
	return v.SectorLen() / DIR_ENTRY_LEN
}
