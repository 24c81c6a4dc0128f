package cfb

// ObjectType is the raw type byte of a directory entry.
type ObjectType uint8

const (
	ObjUnallocated ObjectType = ObjectType(OBJ_TYPE_UNALLOCATED)
	ObjStorage     ObjectType = ObjectType(OBJ_TYPE_STORAGE)
	ObjStream      ObjectType = ObjectType(OBJ_TYPE_STREAM)
	ObjRoot        ObjectType = ObjectType(OBJ_TYPE_ROOT)
)

func (o ObjectType) AsByte() byte {
	return byte(o)
}

// ObjectFromByte keeps unknown type bytes as they are so that a record written
// back is byte-identical; such entries are simply not Valid.
func ObjectFromByte(b byte) ObjectType {
	return ObjectType(b)
}

// IsDir reports whether entries of this type may have children.
func (o ObjectType) IsDir() bool {
	return o == ObjStorage || o == ObjRoot
}

func (o ObjectType) String() string {
	switch o {
	case ObjUnallocated:
		return "unallocated"
	case ObjStorage:
		return "storage"
	case ObjStream:
		return "stream"
	case ObjRoot:
		return "root"
	default:
		return "unknown"
	}
}
