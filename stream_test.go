package cfb

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func readInt32(t *testing.T, r io.Reader) int32 {
	var v int32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &v))
	return v
}

func readFloat64(t *testing.T, r io.Reader) float64 {
	var v float64
	require.NoError(t, binary.Read(r, binary.LittleEndian, &v))
	return v
}

func readString(t *testing.T, r io.Reader) string {
	n := readInt32(t, r)
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	return string(buf)
}

func openTestStream(t *testing.T, s *Storage, path string) *Stream {
	st, err := s.OpenStream(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStreamKnownIntegers(t *testing.T) {
	s := openDocument(t, saveDocument(t, imageDocument(t)))
	st := openTestStream(t, s, "/Image/Contents")

	require.False(t, st.Fail())
	require.Equal(t, "/Image/Contents", st.Path())

	for i := 0; i < 4; i++ {
		readInt32(t, st)
	}

	for _, want := range []int32{1480, 1132, 0, 4} {
		require.Equal(t, want, readInt32(t, st))
	}
	require.EqualValues(t, 32, st.Tell())
}

func TestStreamAcrossMiniSectors(t *testing.T) {
	s := openDocument(t, saveDocument(t, imageDocument(t)))
	st := openTestStream(t, s, "/Image/Scaling/Contents")
	require.Len(t, st.blocks, 2)

	require.Equal(t, int32(1), readInt32(t, st))
	require.Len(t, readString(t, st), 48)
	require.Equal(t, int32(3), readInt32(t, st))

	require.EqualValues(t, 60, st.Tell())
	require.Equal(t, 0.0645, readFloat64(t, st))
	require.Equal(t, int32(76), readInt32(t, st))
	require.True(t, st.EOF())
}

func TestStreamThreshold(t *testing.T) {
	tests := []struct {
		name string
		size int
		big  bool
	}{
		{name: "below cutoff", size: 4095, big: false},
		{name: "at cutoff", size: 4096, big: true},
		{name: "several sectors", size: 10000, big: true},
		{name: "one mini sector", size: 1, big: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			b := NewBuilder()
			require.NoError(t, b.AddStream("/Data", data))
			require.NoError(t, b.AddStream("/Other", pattern(100)))

			s := openDocument(t, saveDocument(t, b))
			st := openTestStream(t, s, "/Data")
			require.Equal(t, tt.big, st.big)
			require.False(t, st.Fail())

			got, err := io.ReadAll(st)
			require.NoError(t, err)
			require.Equal(t, data, got)
		})
	}
}

func TestStreamEmpty(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Empty", nil))

	s := openDocument(t, saveDocument(t, b))
	st := openTestStream(t, s, "/Empty")
	require.Zero(t, st.Size())
	require.Empty(t, st.blocks)

	n, err := st.Read(make([]byte, 8))
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)
	require.True(t, st.EOF())

	_, err = st.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamPartialRead(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "mini", size: 100},
		{name: "big", size: 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			b := NewBuilder()
			require.NoError(t, b.AddStream("/Data", data))

			s := openDocument(t, saveDocument(t, b))
			st := openTestStream(t, s, "/Data")

			pos, err := st.Seek(-10, io.SeekEnd)
			require.NoError(t, err)
			require.EqualValues(t, tt.size-10, pos)

			buf := make([]byte, 20)
			n, err := st.Read(buf)
			require.NoError(t, err)
			require.Equal(t, 10, n)
			require.Equal(t, data[tt.size-10:], buf[:n])
			require.True(t, st.EOF())
			require.EqualValues(t, tt.size, st.Tell())

			n, err = st.Read(buf)
			require.Zero(t, n)
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestStreamSeek(t *testing.T) {
	s := openDocument(t, saveDocument(t, imageDocument(t)))
	st := openTestStream(t, s, "/Image/Contents")

	pos, err := st.Seek(16, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 16, pos)
	require.Equal(t, int32(1480), readInt32(t, st))

	pos, err = st.Seek(4, io.SeekCurrent)
	require.NoError(t, err)
	require.EqualValues(t, 24, pos)
	require.Equal(t, int32(0), readInt32(t, st))

	pos, err = st.Seek(100, io.SeekStart)
	require.ErrorIs(t, err, io.EOF)
	require.EqualValues(t, 28, pos)
	require.True(t, st.EOF())
	require.EqualValues(t, 28, st.Tell())

	_, err = st.Seek(-1, io.SeekStart)
	require.Error(t, err)

	pos, err = st.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.EqualValues(t, 36, pos)
	require.False(t, st.EOF())
}

func TestStreamReadByte(t *testing.T) {
	data := pattern(9000)
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Data", data))

	s := openDocument(t, saveDocument(t, b))
	st := openTestStream(t, s, "/Data")

	got := make([]byte, 0, len(data))
	for {
		c, err := st.ReadByte()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, c)
	}
	require.Equal(t, data, got)
	require.True(t, st.EOF())

	_, err := st.Seek(4095, io.SeekStart)
	require.NoError(t, err)
	c, err := st.ReadByte()
	require.NoError(t, err)
	require.Equal(t, data[4095], c)
	c, err = st.ReadByte()
	require.NoError(t, err)
	require.Equal(t, data[4096], c)
}

func TestStreamReadAt(t *testing.T) {
	data := pattern(6000)
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Data", data))

	s := openDocument(t, saveDocument(t, b))
	st := openTestStream(t, s, "/Data")

	buf := make([]byte, 1000)
	n, err := st.ReadAt(buf, 300)
	require.NoError(t, err)
	require.Equal(t, 1000, n)
	require.Equal(t, data[300:1300], buf)
	require.Zero(t, st.Tell())

	n, err = st.ReadAt(buf, 5500)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 500, n)
	require.Equal(t, data[5500:], buf[:n])

	n, err = st.ReadAt(buf, 6000)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, n)

	_, err = st.ReadAt(buf, -1)
	require.Error(t, err)
}

func TestStreamWrite(t *testing.T) {
	tests := []struct {
		name string
		size int
		off  int64
	}{
		{name: "mini", size: 200, off: 50},
		{name: "mini across sectors", size: 200, off: 60},
		{name: "big across sectors", size: 5000, off: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			b := NewBuilder()
			require.NoError(t, b.AddStream("/Data", data))
			require.NoError(t, b.AddStream("/Other", pattern(300)))
			fs := saveDocument(t, b)

			patch := make([]byte, 100)
			for i := range patch {
				patch[i] = 0xa5
			}

			s := openDocument(t, fs)
			st := openTestStream(t, s, "/Data")

			_, err := st.Seek(tt.off, io.SeekStart)
			require.NoError(t, err)
			n, err := st.Write(patch)
			require.NoError(t, err)
			require.Equal(t, len(patch), n)
			require.EqualValues(t, tt.off+int64(len(patch)), st.Tell())
			require.NoError(t, st.Close())
			require.NoError(t, s.Close())

			want := append([]byte(nil), data...)
			copy(want[tt.off:], patch)

			s = openDocument(t, fs)
			got, err := io.ReadAll(openTestStream(t, s, "/Data"))
			require.NoError(t, err)
			require.Equal(t, want, got)

			other, err := io.ReadAll(openTestStream(t, s, "/Other"))
			require.NoError(t, err)
			require.Equal(t, pattern(300), other)
		})
	}
}

func TestStreamWriteClipped(t *testing.T) {
	data := pattern(100)
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Data", data))
	fs := saveDocument(t, b)

	s := openDocument(t, fs)
	st := openTestStream(t, s, "/Data")

	_, err := st.Seek(90, io.SeekStart)
	require.NoError(t, err)

	n, err := st.Write(make([]byte, 20))
	require.ErrorIs(t, err, io.ErrShortWrite)
	require.True(t, IsShortWrite(err))
	require.Equal(t, 10, n)
	require.True(t, st.EOF())
	require.EqualValues(t, 100, st.Size())

	n, err = st.Write([]byte{1})
	require.ErrorIs(t, err, io.ErrShortWrite)
	require.Zero(t, n)

	_, err = st.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(st)
	require.NoError(t, err)

	want := append([]byte(nil), data...)
	copy(want[90:], make([]byte, 10))
	require.Equal(t, want, got)
}

func TestStreamWriteVisibleToOtherStreams(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddStream("/Data", pattern(5000)))

	s := openDocument(t, saveDocument(t, b))
	writer := openTestStream(t, s, "/Data")
	reader := openTestStream(t, s, "/Data")

	c, err := reader.ReadByte()
	require.NoError(t, err)
	require.Equal(t, pattern(1)[0], c)

	_, err = writer.Write([]byte{0x5a, 0x5b})
	require.NoError(t, err)

	c, err = reader.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x5b), c)
}

func TestStreamCorruptChain(t *testing.T) {
	s := openDocument(t, saveDocument(t, imageDocument(t)))

	e, err := s.Stat("/Image/Scaling/Contents")
	require.NoError(t, err)
	s.sbat.Set(e.StartingSector, 5000)

	st := openTestStream(t, s, "/Image/Scaling/Contents")
	require.True(t, st.Fail())
	require.Len(t, st.blocks, 1)

	buf := make([]byte, 72)
	n, err := st.Read(buf)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 64, n)
	require.Equal(t, scalingContents(t)[:64], buf[:n])
}

func TestStreamClosed(t *testing.T) {
	s := openDocument(t, saveDocument(t, imageDocument(t)))

	st, err := s.OpenStream("/Tags")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	_, err = st.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrorClosed)
	_, err = st.Write([]byte{1})
	require.ErrorIs(t, err, ErrorClosed)
	_, err = st.Seek(0, io.SeekStart)
	require.ErrorIs(t, err, ErrorClosed)

	require.NoError(t, s.DeleteEntry("/Tags"))
}
