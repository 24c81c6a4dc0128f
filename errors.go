package cfb

import "errors"

var (
	ErrorOpenFailed   = errors.New("cannot open file")
	ErrorNotCFB       = errors.New("not a compound file")
	ErrorInvalidCFB   = errors.New("invalid cfb file")
	ErrorCorruptChain = errors.New("corrupt sector chain")

	ErrorNotFound    = errors.New("entry not found")
	ErrorNotStream   = errors.New("not a stream")
	ErrorNotStorage  = errors.New("not a storage")
	ErrorRootEntry   = errors.New("root entry cannot be deleted")
	ErrorEntryInUse  = errors.New("entry is in use")
	ErrorReadOnly    = errors.New("document is read-only")
	ErrorClosed      = errors.New("document is closed")
	ErrorBufferShort = errors.New("buffer too small")
)

// Result is the coarse outcome of opening a document.
type Result int

const (
	ResultOk Result = iota
	ResultOpenFailed
	ResultNotCFB
	ResultInvalidFormat
	ResultUnknownError
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultOpenFailed:
		return "open failed"
	case ResultNotCFB:
		return "not a compound file"
	case ResultInvalidFormat:
		return "invalid format"
	default:
		return "unknown error"
	}
}

// ResultOf maps an error returned by Open into a Result.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOk
	case errors.Is(err, ErrorOpenFailed):
		return ResultOpenFailed
	case errors.Is(err, ErrorNotCFB):
		return ResultNotCFB
	case errors.Is(err, ErrorInvalidCFB):
		return ResultInvalidFormat
	default:
		return ResultUnknownError
	}
}
