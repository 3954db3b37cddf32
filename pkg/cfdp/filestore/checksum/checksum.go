// Package checksum implements the whole-file integrity algorithms
// CFDP's Metadata PDU can select: NULL (no check), MODULAR (CCSDS
// legacy additive checksum), CRC-32 (ISO-HDLC), and CRC-32C
// (Castagnoli). All four are backed by the standard library; CRC-32
// and CRC-32C reuse hash/crc32's stdlib-provided polynomial tables, so
// no third-party compression/hashing library earns a place here (see
// DESIGN.md's dropped-dependency entry for klauspost/compress).
package checksum

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// Checksum accumulates a running checksum over sequentially or
// out-of-order delivered file segments and reports the final 32-bit
// value once all segments are in.
type Checksum interface {
	// Update folds in length bytes of data starting at the given
	// file offset. Segments may arrive out of order; MODULAR and
	// NULL are offset-independent, CRC-32/32C require the caller to
	// feed segments in file order (the destination handler keeps no
	// running Checksum; it recomputes over the written file with
	// ComputeOverFile once reception completes).
	Update(offset uint64, data []byte)
	// Sum returns the checksum computed so far.
	Sum() uint32
}

// New returns a Checksum implementation for t.
func New(t pdu.ChecksumType) Checksum {
	switch t {
	case pdu.ChecksumModular:
		return &modular{}
	case pdu.ChecksumCRC32:
		return &crcChecksum{table: crc32.IEEETable}
	case pdu.ChecksumCRC32C:
		return &crcChecksum{table: crc32.MakeTable(crc32.Castagnoli)}
	default:
		return nullChecksum{}
	}
}

// nullChecksum implements CFDP's NULL checksum: always zero, used
// when the sender and receiver agree to skip integrity checking.
type nullChecksum struct{}

func (nullChecksum) Update(uint64, []byte) {}
func (nullChecksum) Sum() uint32           { return 0 }

// modular implements the CCSDS MODULAR checksum: file data is summed
// four bytes at a time as big-endian uint32s, with the sum wrapping
// at 2^32, aligned so each segment's offset determines its phase
// within the 4-byte word boundary.
type modular struct {
	sum uint32
}

func (m *modular) Update(offset uint64, data []byte) {
	phase := int(offset % 4)
	for i := 0; i < len(data); {
		word := make([]byte, 4)
		n := copy(word[phase:], data[i:])
		m.sum += binary.BigEndian.Uint32(word)
		i += n
		phase = 0
	}
}

func (m *modular) Sum() uint32 {
	return m.sum
}

// crcChecksum implements CRC-32 family checksums over the whole file.
// It requires segments to be fed in file order since CRC is not
// associative the way MODULAR addition is.
type crcChecksum struct {
	table *crc32.Table
	crc   uint32
	began bool
}

func (c *crcChecksum) Update(_ uint64, data []byte) {
	if !c.began {
		c.crc = crc32.Checksum(data, c.table)
		c.began = true
		return
	}
	c.crc = crc32.Update(c.crc, c.table, data)
}

func (c *crcChecksum) Sum() uint32 {
	return c.crc
}
