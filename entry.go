package cfb

import (
	"time"

	"github.com/google/uuid"
)

// filetimeEpochDelta is the number of 100ns intervals between 1601-01-01 and
// the Unix epoch.
const filetimeEpochDelta = 116444736000000000

// Entry is the public view of a directory entry.
type Entry struct {
	Name           string
	DisplayName    string
	Path           string
	ObjType        ObjectType
	CLSID          uuid.UUID
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamLen      uint64
}

func NewEntry(dirEntry *DirEntry, path string) *Entry {
	entry := Entry{
		Name:           dirEntry.Name,
		DisplayName:    dirEntry.DisplayName,
		Path:           path,
		ObjType:        dirEntry.ObjType,
		CLSID:          clsidToUUID(dirEntry.CLSID),
		StateBits:      dirEntry.StateBits,
		CreationTime:   dirEntry.CreationTime,
		ModifiedTime:   dirEntry.ModifiedTime,
		StartingSector: dirEntry.StartingSector,
		StreamLen:      uint64(dirEntry.StreamSize),
	}

	return &entry
}

func (e *Entry) IsStream() bool {
	return e.ObjType == ObjStream
}

func (e *Entry) IsStorage() bool {
	return e.ObjType == ObjStorage
}

func (e *Entry) IsRoot() bool {
	return e.ObjType == ObjRoot
}

func (e *Entry) Created() time.Time {
	return filetimeToTime(e.CreationTime)
}

func (e *Entry) Modified() time.Time {
	return filetimeToTime(e.ModifiedTime)
}

// clsidToUUID converts a GUID stored in its mixed-endian on-disk form: the
// first three fields are little-endian.
func clsidToUUID(b [16]byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

// uuidToCLSID is the inverse of clsidToUUID.
func uuidToCLSID(u uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:], u[8:])
	return b
}

func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	delta := int64(ft) - filetimeEpochDelta
	return time.Unix(delta/10000000, (delta%10000000)*100).UTC()
}

func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + filetimeEpochDelta)
}
