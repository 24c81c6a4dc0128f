package cfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Builder assembles a new version 3 compound file in memory. Streams shorter
// than the mini stream cutoff are packed into the ministream.
type Builder struct {
	root *buildNode
}

type buildNode struct {
	name     string
	objType  ObjectType
	data     []byte
	clsid    [16]byte
	created  uint64
	modified uint64
	children []*buildNode
}

func NewBuilder() *Builder {
	return &Builder{root: &buildNode{name: ROOT_DIR_NAME, objType: ObjRoot}}
}

func (n *buildNode) child(name string) (*buildNode, error) {
	for _, c := range n.children {
		if c.name == name {
			return c, nil
		}
		if CompareNames(c.name, name) == OrderEqual {
			return nil, fmt.Errorf("name %v collides with %v", name, c.name)
		}
	}
	return nil, nil
}

func checkBuildName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			return fmt.Errorf("name %v is not ASCII", name)
		}
	}
	return nil
}

// storage returns the storage named by names, creating missing ones.
func (b *Builder) storage(names []string) (*buildNode, error) {
	n := b.root
	for i, name := range names {
		if err := checkBuildName(name); err != nil {
			return nil, err
		}

		c, err := n.child(name)
		if err != nil {
			return nil, err
		}
		if c == nil {
			c = &buildNode{name: name, objType: ObjStorage}
			n.children = append(n.children, c)
		}
		if !c.objType.IsDir() {
			return nil, fmt.Errorf("%v: %w", PathFromNameChain(names[:i+1]), ErrorNotStorage)
		}
		n = c
	}
	return n, nil
}

func (b *Builder) lookup(path string) (*buildNode, error) {
	names := NameChainFromPath(path)
	n := b.root
	for i, name := range names {
		c, err := n.child(name)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("%v: %w", PathFromNameChain(names[:i+1]), ErrorNotFound)
		}
		n = c
	}
	return n, nil
}

// AddStorage adds the storage at path along with any missing parents.
func (b *Builder) AddStorage(path string) error {
	names := NameChainFromPath(path)
	if len(names) == 0 {
		return fmt.Errorf("%v: %w", path, ErrorRootEntry)
	}
	_, err := b.storage(names)
	return err
}

// AddStream adds the stream at path, or replaces its content if it already
// exists. Missing parent storages are created.
func (b *Builder) AddStream(path string, data []byte) error {
	names := NameChainFromPath(path)
	if len(names) == 0 {
		return fmt.Errorf("%v: %w", path, ErrorRootEntry)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%v: stream of %v bytes does not fit a version 3 file", path, len(data))
	}

	parent, err := b.storage(names[:len(names)-1])
	if err != nil {
		return err
	}

	name := names[len(names)-1]
	if err := checkBuildName(name); err != nil {
		return err
	}

	c, err := parent.child(name)
	if err != nil {
		return err
	}
	if c == nil {
		c = &buildNode{name: name, objType: ObjStream}
		parent.children = append(parent.children, c)
	}
	if c.objType != ObjStream {
		return fmt.Errorf("%v: %w", path, ErrorNotStream)
	}

	c.data = data
	return nil
}

// SetCLSID sets the class id of the storage at path. "/" names the root.
func (b *Builder) SetCLSID(path string, id uuid.UUID) error {
	n, err := b.lookup(path)
	if err != nil {
		return err
	}
	n.clsid = uuidToCLSID(id)
	return nil
}

// SetTimes sets the creation and modification times of the entry at path.
func (b *Builder) SetTimes(path string, created, modified time.Time) error {
	n, err := b.lookup(path)
	if err != nil {
		return err
	}
	n.created = timeToFiletime(created)
	n.modified = timeToFiletime(modified)
	return nil
}

// layout is the sector assignment of an image under construction.
type layout struct {
	tree *DirTree
	fat  *AllocTable
	mfat *AllocTable

	nodes    []*buildNode
	mini     []byte
	fatIDs   []uint32
	difatIDs []uint32
	dirIDs   []uint32
	mfatIDs  []uint32
	miniIDs  []uint32
	streams  map[uint32][]uint32
}

func (b *Builder) flatten() *layout {
	l := &layout{
		tree:    &DirTree{},
		fat:     NewAllocTable(),
		mfat:    NewAllocTable(),
		streams: make(map[uint32][]uint32),
	}
	l.fat.SetBlockSize(1 << SECTOR_SHIFT)
	l.mfat.SetBlockSize(MINI_SECTOR_LEN)

	var add func(n *buildNode) uint32
	add = func(n *buildNode) uint32 {
		index := uint32(len(l.nodes))
		e := NewDirEntry(index, n.name, n.objType)
		e.CLSID = n.clsid
		e.CreationTime = n.created
		e.ModifiedTime = n.modified
		l.tree.entries = append(l.tree.entries, e)
		l.nodes = append(l.nodes, n)

		sorted := make([]*buildNode, len(n.children))
		copy(sorted, n.children)
		sort.Slice(sorted, func(i, j int) bool {
			return CompareNames(sorted[i].name, sorted[j].name) == OrderLess
		})

		ids := make([]uint32, 0, len(sorted))
		for _, c := range sorted {
			ids = append(ids, add(c))
		}
		e.Child = l.tree.linkSiblings(ids)
		return index
	}
	add(b.root)

	return l
}

// linkSiblings arranges sorted entries as a balanced binary tree and returns
// its top.
func (d *DirTree) linkSiblings(sorted []uint32) uint32 {
	if len(sorted) == 0 {
		return NO_STREAM
	}

	mid := len(sorted) / 2
	top := d.entries[sorted[mid]]
	top.LeftSibling = d.linkSiblings(sorted[:mid])
	top.RightSibling = d.linkSiblings(sorted[mid+1:])
	return top.Index
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// allocate reserves n free sectors in table and links them into a chain.
func allocate(table *AllocTable, n int) []uint32 {
	chain := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		id := table.Unused()
		table.Set(id, END_OF_CHAIN)
		chain = append(chain, id)
	}
	table.SetChain(chain)
	return chain
}

func reserve(table *AllocTable, n int, value uint32) []uint32 {
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		id := table.Unused()
		table.Set(id, value)
		ids = append(ids, id)
	}
	return ids
}

func (l *layout) place() {
	sectorLen := 1 << SECTOR_SHIFT
	perSector := sectorLen / 4

	big := 0
	for i, n := range l.nodes {
		e := l.tree.entries[i]
		if e.ObjType != ObjStream {
			continue
		}

		e.StreamSize = uint32(len(n.data))
		if len(n.data) == 0 {
			continue
		}
		if e.StreamSize >= MINI_STREAM_CUTOFF {
			big += ceilDiv(len(n.data), sectorLen)
			continue
		}

		chain := allocate(l.mfat, ceilDiv(len(n.data), MINI_SECTOR_LEN))
		e.StartingSector = chain[0]
		for _, id := range chain {
			end := int(id+1) * MINI_SECTOR_LEN
			for len(l.mini) < end {
				l.mini = append(l.mini, 0)
			}
		}
		copy(l.mini[int(chain[0])*MINI_SECTOR_LEN:], n.data)
	}

	numEntries := ceilDiv(len(l.tree.entries), 4) * 4
	for i := len(l.tree.entries); i < numEntries; i++ {
		e := NewDirEntry(uint32(i), "", ObjUnallocated)
		l.tree.entries = append(l.tree.entries, e)
	}

	numDir := numEntries * DIR_ENTRY_LEN / sectorLen
	numMini := len(l.mini) / MINI_SECTOR_LEN
	numMfat := 0
	if numMini > 0 {
		numMfat = ceilDiv(numMini, perSector)
	}
	numMiniStream := ceilDiv(len(l.mini), sectorLen)

	rest := numDir + numMfat + numMiniStream + big
	numFat, numDifat := 1, 0
	for {
		f := ceilDiv(rest+numFat+numDifat, perSector)
		m := 0
		if f > NUM_DIFAT_ENTRIES_IN_HEADER {
			m = ceilDiv(f-NUM_DIFAT_ENTRIES_IN_HEADER, perSector-1)
		}
		if f == numFat && m == numDifat {
			break
		}
		numFat, numDifat = f, m
	}

	l.fatIDs = reserve(l.fat, numFat, FAT_SECTOR)
	l.difatIDs = reserve(l.fat, numDifat, DIFAT_SECTOR)
	l.dirIDs = allocate(l.fat, numDir)
	l.mfatIDs = allocate(l.fat, numMfat)
	l.miniIDs = allocate(l.fat, numMiniStream)

	for i, n := range l.nodes {
		e := l.tree.entries[i]
		if e.ObjType != ObjStream || e.StreamSize < MINI_STREAM_CUTOFF {
			continue
		}
		chain := allocate(l.fat, ceilDiv(len(n.data), sectorLen))
		e.StartingSector = chain[0]
		l.streams[uint32(i)] = chain
	}

	root := l.tree.Root()
	root.StreamSize = uint32(len(l.mini))
	if len(l.miniIDs) > 0 {
		root.StartingSector = l.miniIDs[0]
	}
}

func (l *layout) numSectors() int {
	n := len(l.fatIDs) + len(l.difatIDs) + len(l.dirIDs) + len(l.mfatIDs) + len(l.miniIDs)
	for _, chain := range l.streams {
		n += len(chain)
	}
	return n
}

// saveTable serializes table into n sectors; cells past the table are free.
func saveTable(table *AllocTable, n, sectorLen int) ([]byte, error) {
	size := n * sectorLen
	if 4*int(table.Count()) > size {
		size = 4 * int(table.Count())
	}

	buf := bytes.Repeat([]byte{0xff}, size)
	if err := table.Save(buf); err != nil {
		return nil, err
	}
	return buf[:n*sectorLen], nil
}

// Bytes lays out and serializes the document.
func (b *Builder) Bytes() ([]byte, error) {
	l := b.flatten()
	l.place()

	sectorLen := 1 << SECTOR_SHIFT
	perSector := sectorLen / 4
	img := make([]byte, (l.numSectors()+1)*sectorLen)
	sector := func(id uint32) []byte {
		off := (int(id) + 1) * sectorLen
		return img[off : off+sectorLen]
	}
	writeChain := func(chain []uint32, data []byte) {
		for i, id := range chain {
			start := i * sectorLen
			if start >= len(data) {
				break
			}
			copy(sector(id), data[start:])
		}
	}

	h := NewHeader()
	h.NumFatSectors = uint32(len(l.fatIDs))
	h.FirstDirSector = l.dirIDs[0]
	h.NumMinifatSectors = uint32(len(l.mfatIDs))
	if len(l.mfatIDs) > 0 {
		h.FirstMinifatSector = l.mfatIDs[0]
	}
	h.NumDifatSectors = uint32(len(l.difatIDs))
	if len(l.difatIDs) > 0 {
		h.FirstDifatSector = l.difatIDs[0]
	}
	for i := 0; i < len(l.fatIDs) && i < NUM_DIFAT_ENTRIES_IN_HEADER; i++ {
		h.InitialDifatEntries[i] = l.fatIDs[i]
	}
	if err := h.Save(img[:HEADER_LEN]); err != nil {
		return nil, err
	}

	rest := l.fatIDs[min(uint64(len(l.fatIDs)), uint64(NUM_DIFAT_ENTRIES_IN_HEADER)):]
	for k, id := range l.difatIDs {
		buf := sector(id)
		for j := 0; j < perSector-1; j++ {
			v := FREE_SECTOR
			if j < len(rest) {
				v = rest[j]
			}
			binary.LittleEndian.PutUint32(buf[j*4:], v)
		}
		if len(rest) > perSector-1 {
			rest = rest[perSector-1:]
		} else {
			rest = nil
		}

		next := END_OF_CHAIN
		if k+1 < len(l.difatIDs) {
			next = l.difatIDs[k+1]
		}
		binary.LittleEndian.PutUint32(buf[(perSector-1)*4:], next)
	}

	fat, err := saveTable(l.fat, len(l.fatIDs), sectorLen)
	if err != nil {
		return nil, err
	}
	writeChain(l.fatIDs, fat)

	dir := make([]byte, len(l.dirIDs)*sectorLen)
	if err := l.tree.Save(dir); err != nil {
		return nil, err
	}
	writeChain(l.dirIDs, dir)

	if len(l.mfatIDs) > 0 {
		mfat, err := saveTable(l.mfat, len(l.mfatIDs), sectorLen)
		if err != nil {
			return nil, err
		}
		writeChain(l.mfatIDs, mfat)
	}
	writeChain(l.miniIDs, l.mini)

	for index, chain := range l.streams {
		writeChain(chain, l.nodes[index].data)
	}

	return img, nil
}

// WriteTo writes the serialized document to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	img, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(img)
	return int64(n), err
}

// Save writes the document to name on fs, replacing an existing file.
func (b *Builder) Save(fs afero.Fs, name string) error {
	img, err := b.Bytes()
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, name, img, 0o644)
}
