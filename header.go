package cfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type Header struct {
	Magic              [8]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          uint16
	SectorShift        uint16
	MiniSectorShift    uint16
	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	TransactionSig     uint32
	MiniStreamCutoff   uint32
	FirstMinifatSector uint32
	NumMinifatSectors  uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32

	InitialDifatEntries [NUM_DIFAT_ENTRIES_IN_HEADER]uint32
}

// NewHeader returns a header for an empty version 3 document.
func NewHeader() *Header {
	h := &Header{
		MinorVersion:       MINOR_VERSION,
		MajorVersion:       uint16(V3),
		ByteOrder:          BYTE_ORDER_MARK,
		SectorShift:        SECTOR_SHIFT,
		MiniSectorShift:    MINI_SECTOR_SHIFT,
		MiniStreamCutoff:   MINI_STREAM_CUTOFF,
		FirstDirSector:     END_OF_CHAIN,
		FirstMinifatSector: END_OF_CHAIN,
		FirstDifatSector:   END_OF_CHAIN,
	}
	copy(h.Magic[:], MAGIC_NUMBER)
	for i := range h.InitialDifatEntries {
		h.InitialDifatEntries[i] = FREE_SECTOR
	}

	return h
}

func (h *Header) SectorLen() int {
	return 1 << h.SectorShift
}

func (h *Header) MiniSectorLen() int {
	return 1 << h.MiniSectorShift
}

// Load decodes the fixed header fields from buf. It does not check them;
// use IsCFB and Validate for that.
func (h *Header) Load(buf []byte) error {
	if len(buf) < HEADER_LEN {
		return fmt.Errorf("header needs %v bytes, got %v: %w", HEADER_LEN, len(buf), ErrorBufferShort)
	}

	le := binary.LittleEndian
	copy(h.Magic[:], buf[:len(MAGIC_NUMBER)])
	h.MinorVersion = le.Uint16(buf[offMinorVersion:])
	h.MajorVersion = le.Uint16(buf[offMajorVersion:])
	h.ByteOrder = le.Uint16(buf[offByteOrder:])
	h.SectorShift = le.Uint16(buf[offSectorShift:])
	h.MiniSectorShift = le.Uint16(buf[offMiniSectorShift:])
	h.NumDirSectors = le.Uint32(buf[offNumDirSectors:])
	h.NumFatSectors = le.Uint32(buf[offNumFatSectors:])
	h.FirstDirSector = le.Uint32(buf[offFirstDirSector:])
	h.TransactionSig = le.Uint32(buf[offTransactionSig:])
	h.MiniStreamCutoff = le.Uint32(buf[offMiniStreamCutoff:])
	h.FirstMinifatSector = le.Uint32(buf[offFirstMinifat:])
	h.NumMinifatSectors = le.Uint32(buf[offNumMinifat:])
	h.FirstDifatSector = le.Uint32(buf[offFirstDifat:])
	h.NumDifatSectors = le.Uint32(buf[offNumDifat:])

	for i := range h.InitialDifatEntries {
		h.InitialDifatEntries[i] = le.Uint32(buf[offDifat+i*4:])
	}

	return nil
}

func (h *Header) IsCFB() bool {
	return bytes.Equal(h.Magic[:], MAGIC_NUMBER)
}

func (h *Header) Validate() error {
	if h.MiniStreamCutoff != MINI_STREAM_CUTOFF {
		return fmt.Errorf("incorrect mini stream cutoff (expected %v, found %v): %w",
			MINI_STREAM_CUTOFF, h.MiniStreamCutoff, ErrorInvalidCFB)
	}

	if h.NumFatSectors == 0 {
		return fmt.Errorf("header declares no FAT sectors: %w", ErrorInvalidCFB)
	}

	if h.SectorShift <= MINI_SECTOR_SHIFT || h.SectorShift >= 31 {
		return fmt.Errorf("sector shift %v out of range: %w", h.SectorShift, ErrorInvalidCFB)
	}

	if h.MiniSectorShift > h.SectorShift {
		return fmt.Errorf("mini sector shift %v exceeds sector shift %v: %w",
			h.MiniSectorShift, h.SectorShift, ErrorInvalidCFB)
	}

	numHeader := uint64(NUM_DIFAT_ENTRIES_IN_HEADER)
	perDifatSector := uint64(h.SectorLen()/4 - 1)
	if uint64(h.NumFatSectors) > numHeader &&
		uint64(h.NumFatSectors) > uint64(h.NumDifatSectors)*perDifatSector+numHeader {
		return fmt.Errorf("%v FAT sectors do not fit in %v DIFAT sectors: %w",
			h.NumFatSectors, h.NumDifatSectors, ErrorInvalidCFB)
	}

	if uint64(h.NumFatSectors) < numHeader && h.NumDifatSectors != 0 {
		return fmt.Errorf("%v DIFAT sectors declared for only %v FAT sectors: %w",
			h.NumDifatSectors, h.NumFatSectors, ErrorInvalidCFB)
	}

	return nil
}

// Save writes a canonical header: magic, minor version 0x3e, the major version
// matching the sector shift, the byte order mark and zeroed reserved fields.
func (h *Header) Save(buf []byte) error {
	if len(buf) < HEADER_LEN {
		return fmt.Errorf("header needs %v bytes, got %v: %w", HEADER_LEN, len(buf), ErrorBufferShort)
	}

	for i := 0; i < offDifat; i++ {
		buf[i] = 0
	}

	le := binary.LittleEndian
	copy(buf, MAGIC_NUMBER)
	le.PutUint16(buf[offMinorVersion:], MINOR_VERSION)
	le.PutUint16(buf[offMajorVersion:], uint16(VersionForShift(h.SectorShift)))
	le.PutUint16(buf[offByteOrder:], BYTE_ORDER_MARK)
	le.PutUint16(buf[offSectorShift:], h.SectorShift)
	le.PutUint16(buf[offMiniSectorShift:], h.MiniSectorShift)
	le.PutUint32(buf[offNumDirSectors:], h.NumDirSectors)
	le.PutUint32(buf[offNumFatSectors:], h.NumFatSectors)
	le.PutUint32(buf[offFirstDirSector:], h.FirstDirSector)
	le.PutUint32(buf[offMiniStreamCutoff:], h.MiniStreamCutoff)
	le.PutUint32(buf[offFirstMinifat:], h.FirstMinifatSector)
	le.PutUint32(buf[offNumMinifat:], h.NumMinifatSectors)
	le.PutUint32(buf[offFirstDifat:], h.FirstDifatSector)
	le.PutUint32(buf[offNumDifat:], h.NumDifatSectors)

	for i, id := range h.InitialDifatEntries {
		le.PutUint32(buf[offDifat+i*4:], id)
	}

	return nil
}
