package cfb

import (
	"fmt"
	"strings"
)

// DirTree is the flat directory entry table. Storages reach their children
// through a per-level binary tree of sibling links; index 0 is the root.
//
// Operations that resolve relative paths take the current directory as an
// explicit index instead of keeping a cursor.
type DirTree struct {
	entries []*DirEntry
	dirty   bool
}

// NewDirTree returns a tree holding only the root entry.
func NewDirTree() *DirTree {
	root := NewDirEntry(ROOT_STREAM_ID, ROOT_DIR_NAME, ObjRoot)
	root.StartingSector = END_OF_CHAIN
	return &DirTree{entries: []*DirEntry{root}}
}

func (d *DirTree) Count() uint32 {
	return uint32(len(d.entries))
}

// Entry returns the entry at index, or nil when index is out of range.
func (d *DirTree) Entry(index uint32) *DirEntry {
	if index >= d.Count() {
		return nil
	}
	return d.entries[index]
}

func (d *DirTree) Root() *DirEntry {
	return d.entries[ROOT_STREAM_ID]
}

func (d *DirTree) Dirty() bool {
	return d.dirty
}

func (d *DirTree) SetDirty(dirty bool) {
	d.dirty = dirty
}

// Load replaces the table with one entry per 128-byte record of buf, valid or
// not.
func (d *DirTree) Load(buf []byte) error {
	n := len(buf) / DIR_ENTRY_LEN
	if n == 0 {
		return fmt.Errorf("directory has no entries: %w", ErrorInvalidCFB)
	}

	d.entries = make([]*DirEntry, 0, n)
	for i := 0; i < n; i++ {
		rec := buf[i*DIR_ENTRY_LEN : (i+1)*DIR_ENTRY_LEN]
		d.entries = append(d.entries, readDirEntry(rec, uint32(i)))
	}
	d.dirty = false

	return nil
}

// Save clears buf and writes every entry into it.
func (d *DirTree) Save(buf []byte) error {
	size := DIR_ENTRY_LEN * len(d.entries)
	if len(buf) < size {
		return fmt.Errorf("directory needs %v bytes, got %v: %w", size, len(buf), ErrorBufferShort)
	}

	for i := range buf {
		buf[i] = 0
	}
	for i, e := range d.entries {
		e.writeTo(buf[i*DIR_ENTRY_LEN : (i+1)*DIR_ENTRY_LEN])
	}

	return nil
}

// Children returns the entries of the sibling tree hanging off index's
// Child link, in pre-order. Invalid entries and revisits end a branch.
func (d *DirTree) Children(index uint32) []uint32 {
	e := d.Entry(index)
	if e == nil || !e.Valid() || e.Child >= d.Count() {
		return nil
	}

	result := make([]uint32, 0)
	visited := make(map[uint32]bool)
	d.findSiblings(e.Child, visited, &result)
	return result
}

func (d *DirTree) findSiblings(index uint32, visited map[uint32]bool, result *[]uint32) {
	e := d.Entry(index)
	if e == nil || !e.Valid() || visited[index] {
		return
	}

	visited[index] = true
	*result = append(*result, index)

	// index 0 is the root and never a sibling
	if e.LeftSibling > 0 && e.LeftSibling < d.Count() {
		d.findSiblings(e.LeftSibling, visited, result)
	}
	if e.RightSibling > 0 && e.RightSibling < d.Count() {
		d.findSiblings(e.RightSibling, visited, result)
	}
}

// Parent scans the whole table for the entry whose children include index.
func (d *DirTree) Parent(index uint32) (uint32, bool) {
	for j := uint32(0); j < d.Count(); j++ {
		for _, c := range d.Children(j) {
			if c == index {
				return j, true
			}
		}
	}

	return 0, false
}

// FullName returns the slash separated path of index. The root is "/".
func (d *DirTree) FullName(index uint32) string {
	e := d.Entry(index)
	if index == ROOT_STREAM_ID || e == nil {
		return "/"
	}

	names := []string{e.Name}
	p, ok := d.Parent(index)
	for hops := uint32(0); ok && p > 0 && hops < d.Count(); hops++ {
		if pe := d.Entry(p); pe != nil && pe.IsDir() && pe.Valid() {
			names = append(names, pe.Name)
		}
		p, ok = d.Parent(p)
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return PathFromNameChain(names)
}

// Find resolves path, absolute or relative to cwd. With create set a missing
// final component is added as an empty stream and becomes the first child of
// its storage.
func (d *DirTree) Find(cwd uint32, path string, create bool) (*DirEntry, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", ErrorNotFound)
	}

	if !strings.HasPrefix(path, "/") {
		path = d.FullName(cwd) + "/" + path
	}

	names := NameChainFromPath(path)
	index := ROOT_STREAM_ID
	for i, name := range names {
		child, found := d.childByName(index, name)
		if found {
			index = child
			continue
		}

		if !create || i != len(names)-1 {
			return nil, fmt.Errorf("%v: %w", PathFromNameChain(names[:i+1]), ErrorNotFound)
		}

		created, err := d.createChild(index, name)
		if err != nil {
			return nil, err
		}
		index = created
	}

	return d.entries[index], nil
}

func (d *DirTree) childByName(index uint32, name string) (uint32, bool) {
	for _, c := range d.Children(index) {
		if e := d.entries[c]; e.Valid() && e.Name == name {
			return c, true
		}
	}
	return 0, false
}

func (d *DirTree) createChild(parentIndex uint32, name string) (uint32, error) {
	parent := d.entries[parentIndex]
	if !parent.IsDir() {
		return 0, fmt.Errorf("cannot create %v under %v: %w", name, d.FullName(parentIndex), ErrorNotStorage)
	}

	index := d.Count()
	e := NewDirEntry(index, name, ObjStream)
	e.RightSibling = parent.Child
	e.modified = true

	d.entries = append(d.entries, e)
	parent.Child = index
	parent.modified = true
	d.dirty = true

	return index, nil
}

// Enter resolves path against cwd and returns it as the new current
// directory.
func (d *DirTree) Enter(cwd uint32, path string) (uint32, error) {
	e, err := d.Find(cwd, path, false)
	if err != nil {
		return cwd, err
	}
	if !e.Valid() {
		return cwd, fmt.Errorf("%v: %w", path, ErrorNotFound)
	}
	if !e.IsDir() {
		return cwd, fmt.Errorf("%v: %w", path, ErrorNotStorage)
	}

	return e.Index, nil
}

// Leave returns the parent of cwd; the root is its own parent.
func (d *DirTree) Leave(cwd uint32) uint32 {
	if cwd == ROOT_STREAM_ID {
		return cwd
	}
	if p, ok := d.Parent(cwd); ok {
		return p
	}
	return cwd
}

func (d *DirTree) ListDirectory(cwd uint32) []*DirEntry {
	children := d.Children(cwd)
	result := make([]*DirEntry, 0, len(children))
	for _, c := range children {
		result = append(result, d.entries[c])
	}
	return result
}

// Delete removes the entry at path together with everything below it and
// relinks its sibling tree. The slot stays in the table as an unallocated
// record.
func (d *DirTree) Delete(cwd uint32, path string) error {
	e, err := d.Find(cwd, path, false)
	if err != nil {
		return err
	}
	if e.Index == ROOT_STREAM_ID {
		return ErrorRootEntry
	}

	if err := d.emptySubtree(e.Index); err != nil {
		return err
	}
	if err := d.unlinkFromTree(e.Index); err != nil {
		return err
	}

	e.clear()
	d.dirty = true
	return nil
}

// emptySubtree deletes every descendant of index and clears its Child link.
func (d *DirTree) emptySubtree(index uint32) error {
	return d.emptySubtreeVisited(index, make(map[uint32]bool))
}

func (d *DirTree) emptySubtreeVisited(index uint32, visited map[uint32]bool) error {
	if visited[index] {
		return fmt.Errorf("directory has a cycle at entry %v: %w", index, ErrorInvalidCFB)
	}
	visited[index] = true

	e := d.entries[index]
	if e.Child == NO_STREAM {
		return nil
	}

	for _, c := range d.Children(index) {
		if err := d.emptySubtreeVisited(c, visited); err != nil {
			return err
		}
		d.entries[c].clear()
	}

	e.Child = NO_STREAM
	e.modified = true
	d.dirty = true
	return nil
}

// unlinkFromTree detaches index from its parent's sibling tree, keeping the
// remaining siblings reachable.
func (d *DirTree) unlinkFromTree(index uint32) error {
	link, err := d.searchPrevLink(index)
	if err != nil {
		return err
	}

	e := d.entries[index]
	switch {
	case e.LeftSibling == NO_STREAM && e.RightSibling == NO_STREAM:
		d.setPrevLink(link, index, NO_STREAM)
	case e.LeftSibling == NO_STREAM:
		d.setPrevLink(link, index, e.RightSibling)
	case e.RightSibling == NO_STREAM:
		d.setPrevLink(link, index, e.LeftSibling)
	default:
		leftmost, err := d.leftmostSibling(e.RightSibling)
		if err != nil {
			return err
		}
		d.entries[leftmost].LeftSibling = e.LeftSibling
		d.entries[leftmost].modified = true
		d.setPrevLink(link, index, e.RightSibling)
	}

	d.dirty = true
	return nil
}

// searchPrevLink finds the entry whose Child, LeftSibling or RightSibling
// points at index.
func (d *DirTree) searchPrevLink(index uint32) (uint32, error) {
	parent, ok := d.Parent(index)
	if !ok {
		return 0, fmt.Errorf("entry %v has no parent: %w", index, ErrorInvalidCFB)
	}
	if d.entries[parent].Child == index {
		return parent, nil
	}

	for _, b := range d.Children(parent) {
		if d.entries[b].LeftSibling == index || d.entries[b].RightSibling == index {
			return b, nil
		}
	}

	return 0, fmt.Errorf("no entry links to %v: %w", index, ErrorInvalidCFB)
}

func (d *DirTree) setPrevLink(link, index, value uint32) {
	pl := d.entries[link]
	if pl.LeftSibling == index {
		pl.LeftSibling = value
	}
	if pl.RightSibling == index {
		pl.RightSibling = value
	}
	if pl.Child == index {
		pl.Child = value
	}
	pl.modified = true
}

func (d *DirTree) leftmostSibling(index uint32) (uint32, error) {
	for hops := uint32(0); hops < d.Count(); hops++ {
		e := d.Entry(index)
		if e == nil {
			return 0, fmt.Errorf("sibling %v out of range: %w", index, ErrorInvalidCFB)
		}
		if e.LeftSibling == NO_STREAM {
			return index, nil
		}
		index = e.LeftSibling
	}

	return 0, fmt.Errorf("sibling tree has a cycle: %w", ErrorInvalidCFB)
}

// Validate performs the structural checks of strict validation: entry types,
// link ranges, sibling name ordering and the absence of cycles.
func (d *DirTree) Validate() error {
	if len(d.entries) == 0 {
		return fmt.Errorf("directory has no entries: %w", ErrorInvalidCFB)
	}

	root := d.Root()
	if uint64(root.StreamSize)%uint64(MINI_SECTOR_LEN) != 0 {
		return fmt.Errorf("root stream len is %v, but should be multiple of %v: %w",
			root.StreamSize, MINI_SECTOR_LEN, ErrorInvalidCFB)
	}

	visited := make(map[uint32]bool)
	stack := []uint32{ROOT_STREAM_ID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			return fmt.Errorf("directory has a cycle: %w", ErrorInvalidCFB)
		}
		visited[id] = true

		e := d.entries[id]
		if id == ROOT_STREAM_ID {
			if e.ObjType != ObjRoot {
				return fmt.Errorf("root entry has object type: %v: %w", e.ObjType, ErrorInvalidCFB)
			}
		} else if e.ObjType != ObjStorage && e.ObjType != ObjStream {
			return fmt.Errorf("non-root entry with object type: %v: %w", e.ObjType, ErrorInvalidCFB)
		}

		if left := e.LeftSibling; left != NO_STREAM {
			if left >= d.Count() {
				return fmt.Errorf("left sibling index is %v, but directory entry count is %v: %w",
					left, d.Count(), ErrorInvalidCFB)
			}
			if CompareNames(d.entries[left].Name, e.Name) != OrderLess {
				return fmt.Errorf("name ordering, %v vs %v: %w", d.entries[left].Name, e.Name, ErrorInvalidCFB)
			}
			stack = append(stack, left)
		}

		if right := e.RightSibling; right != NO_STREAM {
			if right >= d.Count() {
				return fmt.Errorf("right sibling index is %v, but directory entry count is %v: %w",
					right, d.Count(), ErrorInvalidCFB)
			}
			if CompareNames(e.Name, d.entries[right].Name) != OrderLess {
				return fmt.Errorf("name ordering, %v vs %v: %w", e.Name, d.entries[right].Name, ErrorInvalidCFB)
			}
			stack = append(stack, right)
		}

		if child := e.Child; child != NO_STREAM {
			if child >= d.Count() {
				return fmt.Errorf("child index is %v, but directory entry count is %v: %w",
					child, d.Count(), ErrorInvalidCFB)
			}
			stack = append(stack, child)
		}
	}

	return nil
}
