package cfb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Storage is an open compound file: its header, both allocation tables and
// the directory, plus the streams opened from it. It is not safe for
// concurrent use.
type Storage struct {
	cfg *cfg
	log *zap.Logger

	dev    blockDevice
	file   io.Closer
	size   int64
	result Result
	closed bool

	header   *Header
	dirTree  *DirTree
	bbat     *AllocTable
	sbat     *AllocTable
	bigLen   int
	smallLen int

	fatBlocks   []uint32
	difatBlocks []uint32
	dirBlocks   []uint32
	sbBlocks    []uint32

	cache *lru.Cache[uint32, []byte]

	cwd     uint32
	streams map[*Stream]struct{}
	uses    map[uint32]int
}

// Open opens the compound file name on fs for reading and writing, or only
// reading when WithReadOnly is given.
func Open(fs afero.Fs, name string, opts ...Option) (*Storage, error) {
	c := defaultCfg()
	for _, o := range opts {
		o(c)
	}

	flag := os.O_RDWR
	if c.readOnly {
		flag = os.O_RDONLY
	}

	f, err := fs.OpenFile(name, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrorOpenFailed, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrorOpenFailed, err)
	}

	var dev blockDevice = f
	if c.readOnly {
		dev = readOnlyDevice{f}
	}

	s, err := newStorage(dev, f, info.Size(), c)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%v: %w", name, err)
	}

	return s, nil
}

// OpenFile opens a compound file from the operating system's filesystem.
func OpenFile(name string, opts ...Option) (*Storage, error) {
	return Open(afero.NewOsFs(), name, opts...)
}

// OpenReader opens a read-only compound file of the given size from r.
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*Storage, error) {
	c := defaultCfg()
	for _, o := range opts {
		o(c)
	}
	c.readOnly = true

	return newStorage(readOnlyDevice{r}, nil, size, c)
}

func newStorage(dev blockDevice, file io.Closer, size int64, c *cfg) (*Storage, error) {
	s := &Storage{
		cfg:     c,
		log:     c.l,
		dev:     dev,
		file:    file,
		size:    size,
		header:  NewHeader(),
		dirTree: NewDirTree(),
		bbat:    NewAllocTable(),
		sbat:    NewAllocTable(),
		streams: make(map[*Stream]struct{}),
		uses:    make(map[uint32]int),
	}

	if c.blockCacheSize > 0 {
		cache, err := lru.New[uint32, []byte](c.blockCacheSize)
		if err != nil {
			return nil, fmt.Errorf("block cache: %w", err)
		}
		s.cache = cache
	}

	err := s.load()
	s.result = ResultOf(err)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) load() error {
	buf := make([]byte, HEADER_LEN)
	n, err := s.dev.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w: %w", ErrorOpenFailed, err)
	}
	if n < HEADER_LEN {
		return fmt.Errorf("file holds %v bytes, less than a header: %w", n, ErrorNotCFB)
	}

	if err := s.header.Load(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrorNotCFB, err)
	}
	if !s.header.IsCFB() {
		return ErrorNotCFB
	}
	if err := s.header.Validate(); err != nil {
		return err
	}

	s.bigLen = s.header.SectorLen()
	s.smallLen = s.header.MiniSectorLen()
	s.bbat.SetBlockSize(s.bigLen)
	s.sbat.SetBlockSize(s.smallLen)

	if err := s.loadFat(); err != nil {
		return err
	}
	if err := s.loadMiniFat(); err != nil {
		return err
	}
	if err := s.loadDirectory(); err != nil {
		return err
	}
	if err := s.loadMiniStream(); err != nil {
		return err
	}

	s.log.Debug("compound file opened",
		zap.Int64("size", s.size),
		zap.Int("sector_len", s.bigLen),
		zap.Int("mini_sector_len", s.smallLen),
		zap.Uint32("fat_entries", s.bbat.Count()),
		zap.Uint32("minifat_entries", s.sbat.Count()),
		zap.Uint32("dir_entries", s.dirTree.Count()),
		zap.Stringer("validation", s.cfg.validation))

	return nil
}

// loadFat collects the FAT sector ids from the header and the DIFAT chain and
// loads the big allocation table from them.
func (s *Storage) loadFat() error {
	numFat := int(s.header.NumFatSectors)
	if uint64(numFat) > uint64(s.numSectors()) {
		return fmt.Errorf("header declares %v FAT sectors, but file has only %v sectors: %w",
			numFat, s.numSectors(), ErrorInvalidCFB)
	}

	blocks := make([]uint32, 0, numFat)
	for i := 0; i < numFat && i < NUM_DIFAT_ENTRIES_IN_HEADER; i++ {
		blocks = append(blocks, s.header.InitialDifatEntries[i])
	}

	if numFat > NUM_DIFAT_ENTRIES_IN_HEADER {
		var err error
		blocks, err = s.loadDifat(blocks, numFat)
		if err != nil {
			return err
		}
	}
	s.fatBlocks = blocks

	buf := make([]byte, numFat*s.bigLen)
	if n := s.LoadBigBlocks(blocks, buf); n < len(buf) {
		s.log.Warn("FAT is truncated",
			zap.Int("expected", len(buf)),
			zap.Int("read", n))
	}
	if err := s.bbat.Load(buf); err != nil {
		return err
	}

	validation := s.cfg.validation
	if err := s.bbat.MarkReserved(s.fatBlocks, FAT_SECTOR, validation); err != nil {
		return err
	}
	if err := s.bbat.MarkReserved(s.difatBlocks, DIFAT_SECTOR, validation); err != nil {
		return err
	}

	if validation.IsStrict() {
		if err := s.bbat.Validate(s.numSectors()); err != nil {
			return err
		}
	}

	return nil
}

// loadDifat follows the DIFAT chain: every DIFAT sector holds sectorLen/4-1
// FAT sector ids followed by the id of the next DIFAT sector.
func (s *Storage) loadDifat(blocks []uint32, numFat int) ([]uint32, error) {
	perSector := s.bigLen/4 - 1
	buf := make([]byte, s.bigLen)
	seen := make(map[uint32]bool)

	next := s.header.FirstDifatSector
	for r := uint32(0); r < s.header.NumDifatSectors && len(blocks) < numFat; r++ {
		if !isRegularSector(next) {
			break
		}
		if seen[next] {
			return nil, fmt.Errorf("DIFAT chain includes duplicate sector index %v: %w: %w",
				next, ErrorInvalidCFB, ErrorCorruptChain)
		}
		seen[next] = true
		s.difatBlocks = append(s.difatBlocks, next)

		if n := s.LoadBigBlock(next, buf); n < s.bigLen {
			return nil, fmt.Errorf("DIFAT sector %v is truncated: %w", next, ErrorInvalidCFB)
		}

		for k := 0; k < perSector && len(blocks) < numFat; k++ {
			blocks = append(blocks, binary.LittleEndian.Uint32(buf[k*4:]))
		}
		next = binary.LittleEndian.Uint32(buf[perSector*4:])
	}

	if len(blocks) < numFat {
		return nil, fmt.Errorf("DIFAT lists %v FAT sectors, header declares %v: %w",
			len(blocks), numFat, ErrorInvalidCFB)
	}
	if s.cfg.validation.IsStrict() && uint32(len(s.difatBlocks)) != s.header.NumDifatSectors {
		return nil, fmt.Errorf("incorrect DIFAT chain length (header says %v, actual is %v): %w",
			s.header.NumDifatSectors, len(s.difatBlocks), ErrorInvalidCFB)
	}

	return blocks, nil
}

func (s *Storage) loadMiniFat() error {
	start := s.header.FirstMinifatSector
	if !isRegularSector(start) {
		return nil
	}

	chain, err := s.bbat.Follow(start)
	if err != nil {
		return fmt.Errorf("mini FAT chain: %w: %w", ErrorInvalidCFB, err)
	}
	if s.cfg.validation.IsStrict() && uint32(len(chain)) != s.header.NumMinifatSectors {
		return fmt.Errorf("incorrect number of MiniFAT sectors (header says %v, FAT says %v): %w",
			s.header.NumMinifatSectors, len(chain), ErrorInvalidCFB)
	}

	buf := make([]byte, len(chain)*s.bigLen)
	s.LoadBigBlocks(chain, buf)
	return s.sbat.Load(buf)
}

func (s *Storage) loadDirectory() error {
	chain, err := s.bbat.Follow(s.header.FirstDirSector)
	if err != nil {
		return fmt.Errorf("directory chain: %w: %w", ErrorInvalidCFB, err)
	}
	s.dirBlocks = chain

	buf := make([]byte, len(chain)*s.bigLen)
	s.LoadBigBlocks(chain, buf)
	if err := s.dirTree.Load(buf); err != nil {
		return err
	}

	if s.cfg.validation.IsStrict() {
		return s.dirTree.Validate()
	}
	return nil
}

// loadMiniStream resolves the big sectors holding the ministream, which
// starts at the root entry's start sector.
func (s *Storage) loadMiniStream() error {
	start := s.dirTree.Root().StartingSector
	if !isRegularSector(start) {
		return nil
	}

	chain, err := s.bbat.Follow(start)
	if err != nil {
		return fmt.Errorf("ministream chain: %w: %w", ErrorInvalidCFB, err)
	}
	s.sbBlocks = chain

	if s.cfg.validation.IsStrict() {
		return s.sbat.Validate(uint32(len(chain) * s.bigLen / s.smallLen))
	}
	return nil
}

// numSectors is the number of whole or partial sectors after the header.
func (s *Storage) numSectors() uint32 {
	return uint32((s.size+int64(s.bigLen)-1)/int64(s.bigLen) - 1)
}

func (s *Storage) Header() *Header {
	return s.header
}

// Result is the outcome of opening the document.
func (s *Storage) Result() Result {
	return s.result
}

// Path returns the current directory.
func (s *Storage) Path() string {
	return s.dirTree.FullName(s.cwd)
}

func (s *Storage) EnterDirectory(path string) error {
	cwd, err := s.dirTree.Enter(s.cwd, path)
	if err != nil {
		return err
	}
	s.cwd = cwd
	return nil
}

func (s *Storage) LeaveDirectory() {
	s.cwd = s.dirTree.Leave(s.cwd)
}

// InDirectory runs fn with path as the current directory and restores the
// previous one afterwards.
func (s *Storage) InDirectory(path string, fn func() error) error {
	prev := s.cwd
	if err := s.EnterDirectory(path); err != nil {
		return err
	}
	defer func() { s.cwd = prev }()

	return fn()
}

// ListEntries returns the storages and streams of the current directory.
func (s *Storage) ListEntries() []*Entry {
	base := s.Path()
	children := s.dirTree.ListDirectory(s.cwd)

	result := make([]*Entry, 0, len(children))
	for _, e := range children {
		result = append(result, NewEntry(e, joinPath(base, e.Name)))
	}
	return result
}

func (s *Storage) Stat(path string) (*Entry, error) {
	e, err := s.dirTree.Find(s.cwd, path, false)
	if err != nil {
		return nil, err
	}
	return NewEntry(e, s.dirTree.FullName(e.Index)), nil
}

// Walk calls fn for every storage and stream below the root, parents before
// children and siblings in name order.
func (s *Storage) Walk(fn func(*Entry) error) error {
	return s.walk(ROOT_STREAM_ID, "/", make(map[uint32]bool), fn)
}

func (s *Storage) walk(index uint32, base string, visited map[uint32]bool, fn func(*Entry) error) error {
	if visited[index] {
		return fmt.Errorf("directory has a cycle at entry %v: %w", index, ErrorInvalidCFB)
	}
	visited[index] = true

	children := s.dirTree.ListDirectory(index)
	sort.Slice(children, func(i, j int) bool {
		return CompareNames(children[i].Name, children[j].Name) == OrderLess
	})

	for _, e := range children {
		path := joinPath(base, e.Name)
		if err := fn(NewEntry(e, path)); err != nil {
			return err
		}
		if e.IsDir() {
			if err := s.walk(e.Index, path, visited, fn); err != nil {
				return err
			}
		}
	}

	return nil
}

func joinPath(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// OpenStream opens the stream at path, absolute or relative to the current
// directory.
func (s *Storage) OpenStream(path string) (*Stream, error) {
	if s.closed {
		return nil, ErrorClosed
	}

	e, err := s.dirTree.Find(s.cwd, path, false)
	if err != nil {
		return nil, err
	}
	if !e.Valid() {
		return nil, fmt.Errorf("%v: %w", path, ErrorNotFound)
	}
	if e.ObjType != ObjStream {
		return nil, fmt.Errorf("%v: %w", path, ErrorNotStream)
	}

	st := newStream(s, e, s.dirTree.FullName(e.Index))
	s.streams[st] = struct{}{}
	s.uses[e.Index]++
	return st, nil
}

func (s *Storage) releaseStream(st *Stream) {
	if _, ok := s.streams[st]; !ok {
		return
	}
	delete(s.streams, st)

	s.uses[st.entry.Index]--
	if s.uses[st.entry.Index] <= 0 {
		delete(s.uses, st.entry.Index)
	}
}

// inUse reports whether index or one of its descendants has an open stream.
func (s *Storage) inUse(index uint32) bool {
	for used := range s.uses {
		p, ok := used, true
		for hops := uint32(0); ok && hops <= s.dirTree.Count(); hops++ {
			if p == index {
				return true
			}
			if p == ROOT_STREAM_ID {
				break
			}
			p, ok = s.dirTree.Parent(p)
		}
	}
	return false
}

// DeleteEntry removes the entry at path and everything below it, then writes
// the directory back.
func (s *Storage) DeleteEntry(path string) error {
	if s.closed {
		return ErrorClosed
	}
	if s.cfg.readOnly {
		return ErrorReadOnly
	}

	e, err := s.dirTree.Find(s.cwd, path, false)
	if err != nil {
		return err
	}
	if e.Index == ROOT_STREAM_ID {
		return ErrorRootEntry
	}
	if s.inUse(e.Index) {
		return fmt.Errorf("%v: %w", path, ErrorEntryInUse)
	}

	fullName := s.dirTree.FullName(e.Index)
	s.dirTree.SetDirty(true)
	if err := s.dirTree.Delete(s.cwd, path); err != nil {
		return err
	}

	if cur := s.dirTree.Entry(s.cwd); cur == nil || !cur.Valid() {
		s.cwd = ROOT_STREAM_ID
	}

	s.log.Info("entry deleted", zap.String("path", fullName))
	return s.Flush()
}

// Flush writes a modified directory back over its existing sector chain.
func (s *Storage) Flush() error {
	if !s.dirTree.Dirty() {
		return nil
	}
	if s.closed {
		return ErrorClosed
	}

	buf := make([]byte, len(s.dirBlocks)*s.bigLen)
	if err := s.dirTree.Save(buf); err != nil {
		return fmt.Errorf("directory does not fit its %v sectors: %w", len(s.dirBlocks), err)
	}

	for i, id := range s.dirBlocks {
		if _, err := s.SaveBlock(s.sectorOffset(id), buf[i*s.bigLen:(i+1)*s.bigLen]); err != nil {
			return fmt.Errorf("flush directory: %w", err)
		}
	}

	s.dirTree.SetDirty(false)
	s.log.Info("directory flushed", zap.Int("sectors", len(s.dirBlocks)))
	return nil
}

// Close flushes the directory and closes the file. Streams opened from the
// storage become unusable.
func (s *Storage) Close() error {
	if s.closed {
		return nil
	}

	var err error
	if !s.cfg.readOnly {
		err = s.Flush()
	}
	if s.file != nil {
		err = multierr.Append(err, s.file.Close())
	}

	for st := range s.streams {
		st.closed = true
	}
	s.streams = make(map[*Stream]struct{})
	s.uses = make(map[uint32]int)
	s.closed = true

	return err
}
