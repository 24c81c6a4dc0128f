package cfb

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const STREAM_CACHE_SIZE int = 4096

// Stream is a cursor over one stream entry. Its sector chain is resolved
// once when the stream is opened; entries smaller than the mini stream
// cutoff live in mini sectors.
type Stream struct {
	io     *Storage
	entry  *DirEntry
	path   string
	blocks []uint32
	big    bool

	pos    int64
	eof    bool
	bad    bool
	closed bool

	cacheData []byte
	cachePos  int64
	cacheLen  int
}

var (
	_ io.ReadSeeker = (*Stream)(nil)
	_ io.ReaderAt   = (*Stream)(nil)
	_ io.ByteReader = (*Stream)(nil)
	_ io.Writer     = (*Stream)(nil)
)

func newStream(s *Storage, e *DirEntry, path string) *Stream {
	st := &Stream{
		io:        s,
		entry:     e,
		path:      path,
		big:       e.StreamSize >= s.header.MiniStreamCutoff,
		cacheData: make([]byte, STREAM_CACHE_SIZE),
	}

	if e.StreamSize == 0 {
		return st
	}

	var err error
	if st.big {
		st.blocks, err = s.bbat.Follow(e.StartingSector)
	} else {
		st.blocks, err = s.sbat.Follow(e.StartingSector)
	}
	if err != nil {
		st.bad = true
		s.log.Warn("stream chain is corrupt",
			zap.String("path", path),
			zap.Bool("big", st.big),
			zap.Int("resolved", len(st.blocks)),
			zap.Error(err))
	}

	return st
}

func (st *Stream) blockLen() int {
	if st.big {
		return st.io.bigLen
	}
	return st.io.smallLen
}

func (st *Stream) loadBlock(id uint32, buf []byte) int {
	if st.big {
		return st.io.LoadBigBlock(id, buf)
	}
	return st.io.LoadSmallBlock(id, buf)
}

func (st *Stream) check() error {
	if st.closed || st.io.closed {
		return fmt.Errorf("%v: %w", st.path, ErrorClosed)
	}
	return nil
}

// read copies stream bytes starting at pos into p, block by block, and stops
// at the first block that comes back short. The caller clips p to the size.
func (st *Stream) read(pos int64, p []byte) int {
	blockLen := int64(st.blockLen())
	index := pos / blockLen
	offset := pos % blockLen
	buf := make([]byte, blockLen)

	total := 0
	for total < len(p) && index < int64(len(st.blocks)) {
		if n := st.loadBlock(st.blocks[index], buf); int64(n) != blockLen {
			break
		}
		total += copy(p[total:], buf[offset:])
		index++
		offset = 0
	}

	return total
}

// Read reads from the current position. A request running past the end is
// clipped to the remaining bytes and sets EOF.
func (st *Stream) Read(p []byte) (int, error) {
	if err := st.check(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	remaining := st.Size() - st.pos
	if remaining <= 0 {
		st.eof = true
		return 0, io.EOF
	}

	want := len(p)
	if int64(want) >= remaining {
		want = int(remaining)
		st.eof = true
	} else {
		st.eof = false
	}

	n := st.read(st.pos, p[:want])
	st.pos += int64(n)
	if n < want {
		return n, fmt.Errorf("%v: data ends at %v of %v: %w", st.path, st.pos, st.Size(), io.ErrUnexpectedEOF)
	}

	return n, nil
}

func (st *Stream) ReadAt(p []byte, off int64) (int, error) {
	if err := st.check(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, fmt.Errorf("%v: negative offset %v", st.path, off)
	}

	size := st.Size()
	if off >= size {
		return 0, io.EOF
	}

	want := len(p)
	if int64(want) > size-off {
		want = int(size - off)
	}

	n := st.read(off, p[:want])
	if n < want {
		return n, fmt.Errorf("%v: data ends at %v of %v: %w", st.path, off+int64(n), size, io.ErrUnexpectedEOF)
	}
	if want < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// ReadByte reads one byte through a cache window of STREAM_CACHE_SIZE bytes.
func (st *Stream) ReadByte() (byte, error) {
	if err := st.check(); err != nil {
		return 0, err
	}
	if st.pos >= st.Size() {
		st.eof = true
		return 0, io.EOF
	}

	if st.cacheLen == 0 || st.pos < st.cachePos || st.pos >= st.cachePos+int64(st.cacheLen) {
		st.updateCache()
	}
	if st.pos < st.cachePos || st.pos >= st.cachePos+int64(st.cacheLen) {
		return 0, io.EOF
	}

	b := st.cacheData[st.pos-st.cachePos]
	st.pos++
	return b, nil
}

func (st *Stream) updateCache() {
	cacheSize := int64(len(st.cacheData))
	st.cachePos = st.pos - st.pos%cacheSize

	n := cacheSize
	if st.cachePos+n > st.Size() {
		n = st.Size() - st.cachePos
	}
	st.cacheLen = st.read(st.cachePos, st.cacheData[:n])
}

// Seek moves the position. A target beyond the end of the stream leaves the
// position unchanged, sets EOF and returns io.EOF.
func (st *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := st.check(); err != nil {
		return st.pos, err
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = st.pos + offset
	case io.SeekEnd:
		target = st.Size() + offset
	default:
		return st.pos, fmt.Errorf("invalid whence %v", whence)
	}

	if target < 0 {
		return st.pos, fmt.Errorf("%v: negative position %v", st.path, target)
	}
	if target > st.Size() {
		st.eof = true
		return st.pos, io.EOF
	}

	st.eof = false
	st.pos = target
	return st.pos, nil
}

// Write overwrites stream bytes at the current position. The stream never
// grows: data past the declared size is dropped and io.ErrShortWrite is
// returned. A failed or short write of any block reports zero bytes.
func (st *Stream) Write(p []byte) (int, error) {
	if err := st.check(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	remaining := st.Size() - st.pos
	if remaining <= 0 {
		st.eof = true
		return 0, io.ErrShortWrite
	}

	want := len(p)
	clipped := false
	if int64(want) > remaining {
		want = int(remaining)
		clipped = true
		st.eof = true
	} else {
		st.eof = false
	}

	blockLen := int64(st.blockLen())
	index := st.pos / blockLen
	offset := st.pos % blockLen

	written := 0
	for written < want && index < int64(len(st.blocks)) {
		phys, err := st.physicalOffset(st.blocks[index])
		if err != nil {
			return 0, err
		}

		can := int(blockLen - offset)
		if can > want-written {
			can = want - written
		}

		n, err := st.io.SaveBlock(phys+offset, p[written:written+can])
		if err != nil {
			return 0, err
		}

		written += n
		index++
		offset = 0
	}

	st.pos += int64(written)
	st.io.dropStreamCaches(st.entry)

	if written < want {
		return written, fmt.Errorf("%v: chain covers only %v of %v bytes: %w",
			st.path, st.pos, st.Size(), ErrorCorruptChain)
	}
	if clipped {
		return written, io.ErrShortWrite
	}
	return written, nil
}

func (st *Stream) physicalOffset(id uint32) (int64, error) {
	if st.big {
		return st.io.sectorOffset(id), nil
	}
	return st.io.miniOffset(id)
}

func (s *Storage) dropStreamCaches(e *DirEntry) {
	for other := range s.streams {
		if other.entry == e {
			other.cacheLen = 0
		}
	}
}

func (st *Stream) Tell() int64 {
	return st.pos
}

func (st *Stream) Size() int64 {
	return int64(st.entry.StreamSize)
}

// EOF reports whether the last operation reached or ran past the end.
func (st *Stream) EOF() bool {
	return st.eof
}

// Fail reports whether the sector chain could not be fully resolved.
func (st *Stream) Fail() bool {
	return st.bad
}

func (st *Stream) Path() string {
	return st.path
}

func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	st.io.releaseStream(st)
	return nil
}

// IsShortWrite reports whether err is the result of a clipped Write.
func IsShortWrite(err error) bool {
	return errors.Is(err, io.ErrShortWrite)
}
