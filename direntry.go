package cfb

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

const maxNameBytes = 64

type DirEntry struct {
	Index          uint32
	Name           string
	DisplayName    string
	NameLen        uint16
	ObjType        ObjectType
	Color          Color
	LeftSibling    uint32
	RightSibling   uint32
	Child          uint32
	CLSID          [16]byte
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamSize     uint32

	modified bool
}

func NewDirEntry(index uint32, name string, objType ObjectType) *DirEntry {
	dir := DirEntry{
		Index:        index,
		Name:         name,
		DisplayName:  name,
		NameLen:      nameLenFor(name),
		ObjType:      objType,
		Color:        Black,
		LeftSibling:  NO_STREAM,
		RightSibling: NO_STREAM,
		Child:        NO_STREAM,
	}
	if objType == ObjStorage {
		dir.StartingSector = 0
	} else {
		dir.StartingSector = END_OF_CHAIN
	}

	return &dir
}

// Valid reports whether the entry is a live storage, stream or root.
func (e *DirEntry) Valid() bool {
	if e.ObjType != ObjStorage && e.ObjType != ObjStream && e.ObjType != ObjRoot {
		return false
	}
	return e.Name != ""
}

func (e *DirEntry) IsDir() bool {
	return e.ObjType.IsDir()
}

func (e *DirEntry) Modified() bool {
	return e.modified
}

// clear turns the entry into an inert unallocated record. The index is kept.
func (e *DirEntry) clear() {
	*e = DirEntry{
		Index:        e.Index,
		ObjType:      ObjUnallocated,
		Color:        Red,
		LeftSibling:  NO_STREAM,
		RightSibling: NO_STREAM,
		Child:        NO_STREAM,
		modified:     true,
	}
}

func nameLenFor(name string) uint16 {
	if name == "" {
		return 0
	}
	n := len(name)
	if n > MAX_NAME_CHARS {
		n = MAX_NAME_CHARS
	}
	return uint16(min(uint64(n*2+2), maxNameBytes))
}

// readDirEntry decodes one 128-byte record. The narrow name keeps the low
// byte of every UTF-16 code unit; the display name is the full decode.
func readDirEntry(rec []byte, index uint32) *DirEntry {
	le := binary.LittleEndian
	e := &DirEntry{Index: index}

	e.NameLen = le.Uint16(rec[offEntryNameLen:])
	n := int(min(uint64(e.NameLen), maxNameBytes))

	narrow := make([]byte, 0, n/2)
	for j := 0; j < n && rec[offEntryName+j] != 0; j += 2 {
		narrow = append(narrow, rec[offEntryName+j])
	}
	e.Name = string(narrow)
	e.DisplayName = decodeName(rec[offEntryName : offEntryName+n])

	e.ObjType = ObjectFromByte(rec[offEntryType])
	e.Color = ColorFromByte(rec[offEntryColor])
	e.LeftSibling = le.Uint32(rec[offEntryLeft:])
	e.RightSibling = le.Uint32(rec[offEntryRight:])
	e.Child = le.Uint32(rec[offEntryChild:])
	copy(e.CLSID[:], rec[offEntryCLSID:offEntryCLSID+16])
	e.StateBits = le.Uint32(rec[offEntryState:])
	e.CreationTime = le.Uint64(rec[offEntryCreated:])
	e.ModifiedTime = le.Uint64(rec[offEntryModified:])
	e.StartingSector = le.Uint32(rec[offEntryStart:])
	e.StreamSize = le.Uint32(rec[offEntrySize:])

	return e
}

func decodeName(raw []byte) string {
	raw = raw[:len(raw)&^1]
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			raw = raw[:i]
			break
		}
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return ""
	}
	return string(bytes.TrimRight(out, "\x00"))
}

// writeTo encodes the entry into a zeroed 128-byte record. Names are written
// narrow, one byte per UTF-16 code unit, and the color is always black.
func (e *DirEntry) writeTo(rec []byte) {
	le := binary.LittleEndian

	name := e.Name
	if len(name) > MAX_NAME_CHARS {
		name = name[:MAX_NAME_CHARS]
	}
	for j := 0; j < len(name); j++ {
		rec[offEntryName+j*2] = name[j]
	}

	le.PutUint16(rec[offEntryNameLen:], nameLenFor(e.Name))
	rec[offEntryType] = e.ObjType.AsByte()
	rec[offEntryColor] = COLOR_BLACK
	le.PutUint32(rec[offEntryLeft:], e.LeftSibling)
	le.PutUint32(rec[offEntryRight:], e.RightSibling)
	le.PutUint32(rec[offEntryChild:], e.Child)
	copy(rec[offEntryCLSID:], e.CLSID[:])
	le.PutUint32(rec[offEntryState:], e.StateBits)
	le.PutUint64(rec[offEntryCreated:], e.CreationTime)
	le.PutUint64(rec[offEntryModified:], e.ModifiedTime)
	le.PutUint32(rec[offEntryStart:], e.StartingSector)
	le.PutUint32(rec[offEntrySize:], e.StreamSize)
}
