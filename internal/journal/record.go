package journal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/yanun0323/errors"

	"ledger/internal/schema"
)

// Record layout, little endian:
//
//	0:4   magic "LDG1"
//	4:6   record version
//	6:8   event type
//	8:10  schema version
//	10:12 source
//	12:14 flags
//	14:16 reserved
//	16:24 seq
//	24:32 event time (unix nanoseconds)
//	32:40 receive time (unix nanoseconds)
//	40:48 trace id
//	48:52 payload length
//	52:   payload, then a crc32c over header and payload
const (
	recordVersion uint16 = 1
	// RecordHeaderSize is the fixed header length in bytes.
	RecordHeaderSize = 52
	// RecordChecksumSize is the trailing checksum length in bytes.
	RecordChecksumSize = 4
)

var (
	recordMagic = [4]byte{'L', 'D', 'G', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic         = errors.New("journal invalid magic")
	ErrUnsupportedRecordVer = errors.New("journal unsupported record version")
	ErrShortRecord          = errors.New("journal short record")
	ErrChecksumMismatch     = errors.New("journal checksum mismatch")
	ErrPayloadTooLarge      = errors.New("journal payload too large")
	ErrNotNotification      = errors.New("journal payload is not a notification")
)

const maxPayloadLen = uint64(^uint32(0))

// Record is one decoded journal entry.
type Record struct {
	Header  schema.EventHeader
	Payload []byte
}

// RecordSize returns the encoded length of a record carrying payloadLen bytes.
func RecordSize(payloadLen int) int {
	return RecordHeaderSize + payloadLen + RecordChecksumSize
}

// AppendRecord appends the framed record to dst and returns the extended slice.
func AppendRecord(dst []byte, header schema.EventHeader, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, RecordHeaderSize)...)
	encodeHeader(dst[start:start+RecordHeaderSize], header, len(payload))
	dst = append(dst, payload...)
	sum := checksum(dst[start:start+RecordHeaderSize], payload)
	return binary.LittleEndian.AppendUint32(dst, sum)
}

func encodeHeader(dst []byte, header schema.EventHeader, payloadLen int) {
	_ = dst[RecordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(header.Type))
	binary.LittleEndian.PutUint16(dst[8:10], header.Version)
	binary.LittleEndian.PutUint16(dst[10:12], header.Source)
	binary.LittleEndian.PutUint16(dst[12:14], header.Flags)
	binary.LittleEndian.PutUint16(dst[14:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], header.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(header.TsEvent))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(header.TsRecv))
	binary.LittleEndian.PutUint64(dst[40:48], header.TraceID)
	binary.LittleEndian.PutUint32(dst[48:52], uint32(payloadLen))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeHeader(src []byte) (schema.EventHeader, uint32, error) {
	if len(src) < RecordHeaderSize {
		return schema.EventHeader{}, 0, ErrShortRecord
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return schema.EventHeader{}, 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return schema.EventHeader{}, 0, ErrUnsupportedRecordVer
	}
	h := schema.EventHeader{
		Type:    schema.EventType(binary.LittleEndian.Uint16(src[6:8])),
		Version: binary.LittleEndian.Uint16(src[8:10]),
		Source:  binary.LittleEndian.Uint16(src[10:12]),
		Flags:   binary.LittleEndian.Uint16(src[12:14]),
		Seq:     binary.LittleEndian.Uint64(src[16:24]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[24:32])),
		TsRecv:  int64(binary.LittleEndian.Uint64(src[32:40])),
		TraceID: binary.LittleEndian.Uint64(src[40:48]),
	}
	return h, binary.LittleEndian.Uint32(src[48:52]), nil
}
