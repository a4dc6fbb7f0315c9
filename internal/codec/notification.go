package codec

import (
	"encoding/binary"
	"time"

	"ledger/internal/schema"
)

const NotificationPayloadSize = 176

const flagOperational uint16 = 1 << 0

// EncodeNotification serializes a notification into a fixed-size payload.
func EncodeNotification(dst []byte, n schema.Notification) []byte {
	if cap(dst) < NotificationPayloadSize {
		dst = make([]byte, NotificationPayloadSize)
	} else {
		dst = dst[:NotificationPayloadSize]
	}

	var flags uint16
	if n.IsOperational {
		flags |= flagOperational
	}

	binary.LittleEndian.PutUint16(dst[0:2], uint16(n.Type))
	binary.LittleEndian.PutUint16(dst[2:4], flags)
	binary.LittleEndian.PutUint32(dst[4:8], 0)
	binary.LittleEndian.PutUint64(dst[8:16], n.Seq)
	binary.LittleEndian.PutUint64(dst[16:24], n.Slot)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(n.Timestamp))
	copy(dst[32:64], n.Actor[:])
	copy(dst[64:96], n.Counterparty[:])
	binary.LittleEndian.PutUint64(dst[96:104], n.Amount)
	binary.LittleEndian.PutUint64(dst[104:112], n.Reward)
	binary.LittleEndian.PutUint64(dst[112:120], n.Interest)
	binary.LittleEndian.PutUint64(dst[120:128], n.Total)
	binary.LittleEndian.PutUint64(dst[128:136], n.Collateral)
	binary.LittleEndian.PutUint64(dst[136:144], n.Balance)
	binary.LittleEndian.PutUint64(dst[144:152], n.StakedBalance)
	binary.LittleEndian.PutUint64(dst[152:160], n.LentBalance)
	binary.LittleEndian.PutUint64(dst[160:168], n.BankBalance)
	binary.LittleEndian.PutUint64(dst[168:176], n.TotalUsers)

	return dst
}

// DecodeNotification parses a fixed-size notification payload.
func DecodeNotification(src []byte) (schema.Notification, bool) {
	if len(src) < NotificationPayloadSize {
		return schema.Notification{}, false
	}
	n := schema.Notification{
		Type:          schema.EventType(binary.LittleEndian.Uint16(src[0:2])),
		Seq:           binary.LittleEndian.Uint64(src[8:16]),
		Slot:          binary.LittleEndian.Uint64(src[16:24]),
		Timestamp:     int64(binary.LittleEndian.Uint64(src[24:32])),
		Amount:        binary.LittleEndian.Uint64(src[96:104]),
		Reward:        binary.LittleEndian.Uint64(src[104:112]),
		Interest:      binary.LittleEndian.Uint64(src[112:120]),
		Total:         binary.LittleEndian.Uint64(src[120:128]),
		Collateral:    binary.LittleEndian.Uint64(src[128:136]),
		Balance:       binary.LittleEndian.Uint64(src[136:144]),
		StakedBalance: binary.LittleEndian.Uint64(src[144:152]),
		LentBalance:   binary.LittleEndian.Uint64(src[152:160]),
		BankBalance:   binary.LittleEndian.Uint64(src[160:168]),
		TotalUsers:    binary.LittleEndian.Uint64(src[168:176]),
	}
	n.IsOperational = binary.LittleEndian.Uint16(src[2:4])&flagOperational != 0
	copy(n.Actor[:], src[32:64])
	copy(n.Counterparty[:], src[64:96])
	return n, true
}

// HeaderFor builds the journal header for a notification. Header times are
// unix nanoseconds; the notification carries whole seconds.
func HeaderFor(n schema.Notification, source uint16, tsRecv int64) schema.EventHeader {
	h := schema.NewHeader(n.Type, source, n.Seq, n.Timestamp*int64(time.Second), tsRecv)
	h.TraceID = n.Slot
	return h
}
