package model

import (
	"encoding/binary"
	"errors"
)

const (
	entryHeaderSize = 9
	flagTombstone   = byte(1)
)

// ErrMalformedEntry is returned when a stored record cannot be decoded
var ErrMalformedEntry = errors.New("malformed entry record")

// Entry is a versioned value as kept by a replica.
// Deletes are stored as tombstones so newer deletes win over older writes.
type Entry struct {
	Value       []byte
	Timestamp   int64
	IsTombstone bool
}

// Encode serializes the entry as flags(1) | timestamp(8, big endian) | value
func (e Entry) Encode() []byte {
	buf := make([]byte, entryHeaderSize+len(e.Value))
	if e.IsTombstone {
		buf[0] = flagTombstone
	}
	binary.BigEndian.PutUint64(buf[1:entryHeaderSize], uint64(e.Timestamp))
	copy(buf[entryHeaderSize:], e.Value)
	return buf
}

// DecodeEntry parses a record produced by Encode
func DecodeEntry(record []byte) (Entry, error) {
	if len(record) < entryHeaderSize {
		return Entry{}, ErrMalformedEntry
	}
	entry := Entry{
		IsTombstone: record[0]&flagTombstone != 0,
		Timestamp:   int64(binary.BigEndian.Uint64(record[1:entryHeaderSize])),
	}
	if !entry.IsTombstone {
		entry.Value = append([]byte(nil), record[entryHeaderSize:]...)
	}
	return entry, nil
}
