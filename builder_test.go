package cfb

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBuilderLayout(t *testing.T) {
	img, err := imageDocument(t).Bytes()
	require.NoError(t, err)
	require.Zero(t, len(img)%512)

	h := NewHeader()
	require.NoError(t, h.Load(img))
	require.True(t, h.IsCFB())
	require.NoError(t, h.Validate())
	require.Equal(t, uint32(1), h.NumFatSectors)
	require.Zero(t, h.NumDifatSectors)
	require.Equal(t, END_OF_CHAIN, h.FirstDifatSector)
	require.Equal(t, uint32(1), h.NumMinifatSectors)
	require.Equal(t, uint32(0), h.InitialDifatEntries[0])
	require.Equal(t, FREE_SECTOR, h.InitialDifatEntries[1])
}

func TestBuilderSiblingTrees(t *testing.T) {
	b := NewBuilder()
	for _, name := range []string{"delta", "Alpha", "c", "BB", "echo", "f", "Golf", "hotel1"} {
		require.NoError(t, b.AddStream("/S/"+name, []byte(name)))
	}
	fs := saveDocument(t, b)

	s := openDocument(t, fs, WithValidation(ValidationStrict))
	require.NoError(t, s.dirTree.Validate())
	require.NoError(t, s.EnterDirectory("/S"))
	require.Len(t, s.ListEntries(), 8)

	var got []string
	require.NoError(t, s.Walk(func(e *Entry) error {
		got = append(got, e.Name)
		return nil
	}))
	require.Equal(t, []string{"S", "c", "f", "BB", "echo", "Golf", "Alpha", "delta", "hotel1"}, got)
}

func TestBuilderMetadata(t *testing.T) {
	clsid := uuid.MustParse("00020906-0000-0000-c000-000000000046")
	created := time.Date(2021, 3, 4, 5, 6, 7, 800, time.UTC)
	modified := created.Add(time.Hour)

	b := NewBuilder()
	require.NoError(t, b.AddStorage("/Doc"))
	require.NoError(t, b.SetCLSID("/Doc", clsid))
	require.NoError(t, b.SetTimes("/Doc", created, modified))
	require.NoError(t, b.SetCLSID("/", clsid))
	require.ErrorIs(t, b.SetCLSID("/Missing", clsid), ErrorNotFound)

	img, err := b.Bytes()
	require.NoError(t, err)

	// the GUID's first three fields are stored little-endian
	d := NewDirTree()
	require.NoError(t, d.Load(img[HEADER_LEN*2:]))
	require.Equal(t, []byte{0x06, 0x09, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00}, d.Entry(1).CLSID[:8])

	s := openDocument(t, saveDocument(t, b))
	e, err := s.Stat("/Doc")
	require.NoError(t, err)
	require.True(t, e.IsStorage())
	require.Equal(t, clsid, e.CLSID)
	require.True(t, created.Equal(e.Created()))
	require.True(t, modified.Equal(e.Modified()))

	root, err := s.Stat("/")
	require.NoError(t, err)
	require.True(t, root.IsRoot())
	require.Equal(t, clsid, root.CLSID)
	require.True(t, root.Created().IsZero())
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Data", []byte("x")))

	require.ErrorIs(t, b.AddStream("/Data/Inner", nil), ErrorNotStorage)
	require.ErrorIs(t, b.AddStorage("/Data"), ErrorNotStorage)
	require.ErrorIs(t, b.AddStorage("/"), ErrorRootEntry)
	require.ErrorIs(t, b.AddStream("/", nil), ErrorRootEntry)
	require.Error(t, b.AddStream("/DATA", nil))
	require.Error(t, b.AddStream("/a:b", nil))
	require.Error(t, b.AddStream("/\u00e9t\u00e9", nil))
	require.Error(t, b.AddStorage("/"+string(bytes.Repeat([]byte{'n'}, 32))))

	require.NoError(t, b.AddStorage("/Store"))
	require.ErrorIs(t, b.AddStream("/Store", nil), ErrorNotStream)

	require.NoError(t, b.AddStream("/Data", []byte("replaced")))
	s := openDocument(t, saveDocument(t, b))
	data, err := io.ReadAll(openTestStream(t, s, "/Data"))
	require.NoError(t, err)
	require.Equal(t, "replaced", string(data))
}

func TestBuilderWriteTo(t *testing.T) {
	b := imageDocument(t)
	img, err := b.Bytes()
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	require.EqualValues(t, len(img), n)
	require.Equal(t, img, buf.Bytes())
}

func TestBuilderDifat(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a document of several megabytes")
	}

	data := pattern(7200000)
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Large", data))
	require.NoError(t, b.AddStream("/Small", pattern(10)))

	s := openDocument(t, saveDocument(t, b), WithValidation(ValidationStrict))
	require.Equal(t, uint32(1), s.Header().NumDifatSectors)
	require.Greater(t, s.Header().NumFatSectors, uint32(NUM_DIFAT_ENTRIES_IN_HEADER))
	require.Len(t, s.difatBlocks, 1)

	got, err := io.ReadAll(openTestStream(t, s, "/Large"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))

	small, err := io.ReadAll(openTestStream(t, s, "/Small"))
	require.NoError(t, err)
	require.Equal(t, pattern(10), small)
}
