package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocTableSaveLoad(t *testing.T) {
	a := NewAllocTable()
	a.SetBlockSize(512)
	a.SetChain([]uint32{0, 1, 2})
	a.SetChain([]uint32{5, 3, 200})
	a.Set(4, FAT_SECTOR)
	a.Set(6, DIFAT_SECTOR)

	buf := make([]byte, 4*a.Count())
	require.NoError(t, a.Save(buf))

	b := NewAllocTable()
	require.NoError(t, b.Load(buf))
	require.Equal(t, a.Count(), b.Count())
	for i := uint32(0); i < a.Count(); i++ {
		require.Equal(t, a.Get(i), b.Get(i), "cell %d", i)
	}

	require.ErrorIs(t, a.Save(buf[:len(buf)-1]), ErrorBufferShort)
	require.ErrorIs(t, b.Load(buf[:len(buf)-1]), ErrorInvalidCFB)
}

func TestAllocTableFollow(t *testing.T) {
	tests := []struct {
		name  string
		chain []uint32
	}{
		{name: "single", chain: []uint32{7}},
		{name: "sequential", chain: []uint32{0, 1, 2, 3}},
		{name: "scattered", chain: []uint32{10, 2, 90, 4, 33}},
		{name: "backwards", chain: []uint32{127, 64, 1, 0}},
		{name: "grown", chain: []uint32{3, 150, 151}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocTable()
			a.SetChain(tt.chain)

			got, err := a.Follow(tt.chain[0])
			require.NoError(t, err)
			require.Equal(t, tt.chain, got)
			require.Equal(t, END_OF_CHAIN, a.Get(tt.chain[len(tt.chain)-1]))
		})
	}
}

func TestAllocTableFollowCycle(t *testing.T) {
	tests := []struct {
		name  string
		links map[uint32]uint32
		start uint32
	}{
		{name: "self", links: map[uint32]uint32{3: 3}, start: 3},
		{name: "mutual", links: map[uint32]uint32{1: 2, 2: 1}, start: 1},
		{name: "tail loop", links: map[uint32]uint32{0: 5, 5: 9, 9: 5}, start: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocTable()
			for k, v := range tt.links {
				a.Set(k, v)
			}

			chain, err := a.Follow(tt.start)
			require.ErrorIs(t, err, ErrorCorruptChain)
			require.LessOrEqual(t, uint32(len(chain)), a.Count())
			require.Equal(t, tt.start, chain[0])
		})
	}
}

func TestAllocTableFollowBadStart(t *testing.T) {
	a := NewAllocTable()
	chain, err := a.Follow(a.Count())
	require.ErrorIs(t, err, ErrorCorruptChain)
	require.Empty(t, chain)

	_, err = a.Follow(END_OF_CHAIN)
	require.ErrorIs(t, err, ErrorCorruptChain)
}

func TestAllocTableFollowOutOfRange(t *testing.T) {
	a := NewAllocTable()
	a.Set(0, 1)
	a.Set(1, a.Count()+5)

	chain, err := a.Follow(0)
	require.ErrorIs(t, err, ErrorCorruptChain)
	require.Equal(t, []uint32{0, 1}, chain)
}

func TestAllocTableUnused(t *testing.T) {
	a := NewAllocTable()
	require.Equal(t, uint32(0), a.Unused())

	a.SetChain([]uint32{0, 1})
	require.Equal(t, uint32(2), a.Unused())

	for i := uint32(0); i < a.Count(); i++ {
		a.Set(i, END_OF_CHAIN)
	}
	count := a.Count()
	require.Equal(t, count, a.Unused())
	require.Equal(t, count+allocTableGrowBy, a.Count())
	require.Equal(t, FREE_SECTOR, a.Get(count))
}

func TestAllocTableSetBlockSize(t *testing.T) {
	a := NewAllocTable()
	a.SetChain([]uint32{1, 300})
	a.SetBlockSize(64)

	require.Equal(t, 64, a.BlockSize())
	require.Equal(t, uint32(allocTableInitialLen), a.Count())
	require.Equal(t, FREE_SECTOR, a.Get(1))
}

func TestAllocTableValidate(t *testing.T) {
	a := NewAllocTable()
	a.SetChain([]uint32{0, 1, 2})
	require.NoError(t, a.Validate(a.Count()))

	a.Set(5, 1)
	require.ErrorIs(t, a.Validate(a.Count()), ErrorInvalidCFB)

	a.Set(5, 500)
	require.ErrorIs(t, a.Validate(a.Count()), ErrorInvalidCFB)

	a.Set(5, INVALID_SECTOR)
	require.ErrorIs(t, a.Validate(a.Count()), ErrorInvalidCFB)
}

func TestAllocTableMarkReserved(t *testing.T) {
	a := NewAllocTable()
	a.Set(0, FAT_SECTOR)
	a.Set(1, END_OF_CHAIN)

	require.ErrorIs(t, a.MarkReserved([]uint32{0, 1}, FAT_SECTOR, ValidationStrict), ErrorInvalidCFB)
	require.NoError(t, a.MarkReserved([]uint32{0, 1}, FAT_SECTOR, ValidationPermissive))
	require.Equal(t, FAT_SECTOR, a.Get(1))
	require.NoError(t, a.MarkReserved([]uint32{0, 1}, FAT_SECTOR, ValidationStrict))
}
