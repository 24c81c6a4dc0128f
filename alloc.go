package cfb

import (
	"encoding/binary"
	"fmt"
)

const (
	allocTableInitialLen = 128
	allocTableGrowBy     = 10
)

// AllocTable is a sector allocation table: cell i holds the sector that
// follows sector i in its chain, or one of the sentinel values.
type AllocTable struct {
	blockSize int
	data      []uint32
}

func NewAllocTable() *AllocTable {
	a := &AllocTable{blockSize: 1 << 12}
	a.resize(allocTableInitialLen)
	return a
}

func (a *AllocTable) Count() uint32 {
	return uint32(len(a.data))
}

func (a *AllocTable) BlockSize() int {
	return a.blockSize
}

// SetBlockSize sets the sector size addressed by the table and resets it to
// its initial empty state.
func (a *AllocTable) SetBlockSize(size int) {
	a.blockSize = size
	a.data = a.data[:0]
	a.resize(allocTableInitialLen)
}

func (a *AllocTable) resize(n int) {
	for len(a.data) < n {
		a.data = append(a.data, FREE_SECTOR)
	}
	a.data = a.data[:n]
}

func (a *AllocTable) Get(index uint32) uint32 {
	if index >= a.Count() {
		return FREE_SECTOR
	}
	return a.data[index]
}

// Set stores value at index, growing the table with free cells if needed.
func (a *AllocTable) Set(index, value uint32) {
	if index >= a.Count() {
		a.resize(int(index) + 1)
	}
	a.data[index] = value
}

// SetChain links every sector of chain to the next one and terminates the
// last with END_OF_CHAIN.
func (a *AllocTable) SetChain(chain []uint32) {
	if len(chain) == 0 {
		return
	}
	for i := 0; i < len(chain)-1; i++ {
		a.Set(chain[i], chain[i+1])
	}
	a.Set(chain[len(chain)-1], END_OF_CHAIN)
}

// Follow returns the chain of sectors starting at start. The walk is bounded
// by Count hops; on failure the sectors collected so far are returned along
// with an error wrapping ErrorCorruptChain.
func (a *AllocTable) Follow(start uint32) ([]uint32, error) {
	count := a.Count()
	if start >= count {
		return nil, fmt.Errorf("chain start %v outside table of %v entries: %w", start, count, ErrorCorruptChain)
	}

	chain := make([]uint32, 0, 8)
	for p := start; ; {
		if uint32(len(chain)) >= count {
			return chain, fmt.Errorf("chain from %v does not end within %v hops: %w", start, count, ErrorCorruptChain)
		}
		chain = append(chain, p)

		next := a.data[p]
		if !isRegularSector(next) {
			return chain, nil
		}
		if next >= count {
			return chain, fmt.Errorf("sector %v links to %v, but table has only %v entries: %w",
				p, next, count, ErrorCorruptChain)
		}
		p = next
	}
}

// Unused returns the first free cell, growing the table when none is left.
func (a *AllocTable) Unused() uint32 {
	for i, v := range a.data {
		if v == FREE_SECTOR {
			return uint32(i)
		}
	}

	block := len(a.data)
	a.resize(block + allocTableGrowBy)
	return uint32(block)
}

func (a *AllocTable) Load(buf []byte) error {
	if len(buf)%4 != 0 {
		return fmt.Errorf("allocation table length %v is not a multiple of 4: %w", len(buf), ErrorInvalidCFB)
	}

	a.resize(len(buf) / 4)
	for i := range a.data {
		a.data[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}

	return nil
}

func (a *AllocTable) Save(buf []byte) error {
	if len(buf) < 4*len(a.data) {
		return fmt.Errorf("allocation table needs %v bytes, got %v: %w", 4*len(a.data), len(buf), ErrorBufferShort)
	}

	for i, v := range a.data {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}

	return nil
}

// MarkReserved checks that every sector in ids is marked with value
// (FAT_SECTOR or DIFAT_SECTOR). Permissive validation repairs the cell instead
// of failing.
func (a *AllocTable) MarkReserved(ids []uint32, value uint32, validation Validation) error {
	for _, id := range ids {
		if id >= a.Count() {
			if validation.IsStrict() {
				return fmt.Errorf("invalid FAT has %v entries, but sector %v is listed as reserved: %w",
					a.Count(), id, ErrorInvalidCFB)
			}
			continue
		}

		if a.data[id] != value {
			if validation.IsStrict() {
				return fmt.Errorf("invalid sector %v is not marked as %#x in the FAT: %w", id, value, ErrorInvalidCFB)
			}
			a.data[id] = value
		}
	}

	return nil
}

// Validate checks that every link points inside limit and that no sector is
// pointed to twice.
func (a *AllocTable) Validate(limit uint32) error {
	pointees := make(map[uint32]bool)
	for idx, next := range a.data {
		if next <= MAX_REGULAR_SECTOR {
			if next >= limit {
				return fmt.Errorf("invalid entry %v points to sector %v, but there are only %v sectors: %w",
					idx, next, limit, ErrorInvalidCFB)
			}
			if pointees[next] {
				return fmt.Errorf("invalid entry %v points to sector %v, which is already pointed to by another entry: %w",
					idx, next, ErrorInvalidCFB)
			}
			pointees[next] = true
		} else if next == INVALID_SECTOR {
			return fmt.Errorf("invalid entry %v holds the reserved value %#x: %w", idx, next, ErrorInvalidCFB)
		}
	}

	return nil
}
