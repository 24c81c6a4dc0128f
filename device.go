package cfb

import (
	"fmt"
	"io"
)

//go:generate mockgen -source=device.go -destination=device_mock_test.go -package cfb

// blockDevice is the positioned I/O a Storage needs from its file.
// It mainly exists to be able to mock the file in tests.
type blockDevice interface {
	io.ReaderAt
	io.WriterAt
}

// readOnlyDevice adapts a plain io.ReaderAt.
type readOnlyDevice struct {
	io.ReaderAt
}

func (readOnlyDevice) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("write of %v bytes at %v: %w", len(p), off, ErrorReadOnly)
}
