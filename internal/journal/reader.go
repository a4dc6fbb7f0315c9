package journal

import (
	"bufio"
	"encoding/binary"
	"io"

	"ledger/internal/codec"
	"ledger/internal/schema"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes records sequentially from a segment file or a stream.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
}

// NewReader wraps an io.Reader with record decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, RecordHeaderSize),
	}
}

// Next returns the next record. The payload is only valid until the next call
// to Next. A clean end of input returns io.EOF; a record cut short returns
// io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return Record{}, io.EOF
		}
		return Record{}, err
	}

	header, payloadLen, err := decodeHeader(r.headerBuf)
	if err != nil {
		return Record{}, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return Record{}, ErrPayloadTooLarge
	}

	if cap(r.payload) < int(payloadLen) {
		r.payload = make([]byte, payloadLen)
	}
	r.payload = r.payload[:payloadLen]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return Record{}, unexpected(err)
	}

	var checksumBuf [RecordChecksumSize]byte
	if _, err := io.ReadFull(r.r, checksumBuf[:]); err != nil {
		return Record{}, unexpected(err)
	}
	if !r.opts.DisableChecksum {
		if checksum(r.headerBuf, r.payload) != binary.LittleEndian.Uint32(checksumBuf[:]) {
			return Record{}, ErrChecksumMismatch
		}
	}

	return Record{Header: header, Payload: r.payload}, nil
}

// Notification decodes the record payload.
func (rec Record) Notification() (schema.Notification, error) {
	n, ok := codec.DecodeNotification(rec.Payload)
	if !ok {
		return schema.Notification{}, ErrNotNotification
	}
	return n, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
