package cfb

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// sectorOffset returns the file offset of big sector id. The header takes the
// place of sector -1.
func (s *Storage) sectorOffset(id uint32) int64 {
	return (int64(id) + 1) * int64(s.bigLen)
}

// readSector returns the bytes of sector id that are present in the file.
// The slice is shared with the block cache and must not be modified.
func (s *Storage) readSector(id uint32) []byte {
	if s.cache != nil {
		if data, ok := s.cache.Get(id); ok {
			return data
		}
	}

	pos := s.sectorOffset(id)
	if pos >= s.size {
		return nil
	}

	n := int64(s.bigLen)
	if pos+n > s.size {
		n = s.size - pos
	}

	data := make([]byte, n)
	read, err := s.dev.ReadAt(data, pos)
	if err != nil && !errors.Is(err, io.EOF) {
		s.log.Warn("sector read failed",
			zap.Uint32("sector", id),
			zap.Int("read", read),
			zap.Error(err))
		return data[:read]
	}

	data = data[:read]
	if s.cache != nil {
		s.cache.Add(id, data)
	}
	return data
}

// LoadBigBlock copies sector id into buf and returns the number of bytes
// copied. Sectors cut off by the end of the file give short counts.
func (s *Storage) LoadBigBlock(id uint32, buf []byte) int {
	return copy(buf, s.readSector(id))
}

// LoadBigBlocks reads the sectors of list back to back into buf. It stops
// when buf is full or a sector comes back short.
func (s *Storage) LoadBigBlocks(list []uint32, buf []byte) int {
	total := 0
	for _, id := range list {
		if total >= len(buf) {
			break
		}

		want := len(buf) - total
		if want > s.bigLen {
			want = s.bigLen
		}

		n := s.LoadBigBlock(id, buf[total:total+want])
		total += n
		if n < want {
			break
		}
	}

	return total
}

// LoadSmallBlock copies mini sector id into buf.
func (s *Storage) LoadSmallBlock(id uint32, buf []byte) int {
	return s.LoadSmallBlocks([]uint32{id}, buf)
}

// LoadSmallBlocks reads mini sectors through the big sectors backing the
// ministream. It stops at a mini sector outside the ministream or one whose
// backing sector is truncated.
func (s *Storage) LoadSmallBlocks(list []uint32, buf []byte) int {
	total := 0
	for _, id := range list {
		if total >= len(buf) {
			break
		}

		pos := int64(id) * int64(s.smallLen)
		bbindex := pos / int64(s.bigLen)
		if bbindex >= int64(len(s.sbBlocks)) {
			break
		}

		data := s.readSector(s.sbBlocks[bbindex])
		if len(data) != s.bigLen {
			break
		}

		offset := int(pos % int64(s.bigLen))
		p := len(buf) - total
		if p > s.bigLen-offset {
			p = s.bigLen - offset
		}
		if p > s.smallLen {
			p = s.smallLen
		}

		copy(buf[total:total+p], data[offset:offset+p])
		total += p
	}

	return total
}

// miniOffset returns the file offset of mini sector id.
func (s *Storage) miniOffset(id uint32) (int64, error) {
	pos := int64(id) * int64(s.smallLen)
	bbindex := pos / int64(s.bigLen)
	if bbindex >= int64(len(s.sbBlocks)) {
		return 0, fmt.Errorf("mini sector %v lies outside the ministream of %v sectors: %w",
			id, len(s.sbBlocks), ErrorCorruptChain)
	}

	return s.sectorOffset(s.sbBlocks[bbindex]) + pos%int64(s.bigLen), nil
}

// SaveBlock writes data at the file offset and drops every cached sector the
// write touches.
func (s *Storage) SaveBlock(offset int64, data []byte) (int, error) {
	if s.closed {
		return 0, ErrorClosed
	}

	n, err := s.dev.WriteAt(data, offset)
	s.invalidate(offset, len(data))
	if err != nil {
		return n, fmt.Errorf("write %v bytes at %v: %w", len(data), offset, err)
	}
	if n < len(data) {
		return n, fmt.Errorf("write %v bytes at %v: %w", len(data), offset, io.ErrShortWrite)
	}

	if end := offset + int64(n); end > s.size {
		s.size = end
	}
	return n, nil
}

func (s *Storage) invalidate(offset int64, n int) {
	if s.cache == nil || n == 0 {
		return
	}

	bigLen := int64(s.bigLen)
	first := offset/bigLen - 1
	last := (offset+int64(n)-1)/bigLen - 1
	for id := first; id <= last; id++ {
		if id >= 0 {
			s.cache.Remove(uint32(id))
		}
	}
}
