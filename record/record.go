// Package record implements the stable tagged binary record format of
// spec.md §4.5 ("Record format (C5)"): each of a Record's eight fields is
// encoded as a small integer tag followed by a fixed- or length-prefixed
// value, generalizing the teacher's recordio/header.go tag-length-value
// headerEncoder/decoder pair to this repo's fixed eight-field schema.
// Absent fields decode to their zero value.
package record

import (
	"encoding/binary"

	"github.com/TMac-wei/mylogger/internal/errors"
)

// Level is a log severity level, spec.md §3.
type Level int32

const (
	Trace Level = 0
	Debug Level = 1
	Info  Level = 2
	Warn  Level = 3
	Error Level = 4
	Fatal Level = 5
)

// Record is an immutable log record, spec.md §3.
type Record struct {
	Level       Level
	TimestampMs int64
	ProcessID   uint32
	ThreadID    uint32
	FileName    string
	FuncName    string
	Line        uint32
	Message     []byte
}

const (
	tagLevel     uint8 = 1
	tagTimestamp uint8 = 2
	tagProcessID uint8 = 3
	tagThreadID  uint8 = 4
	tagLine      uint8 = 5
	tagFileName  uint8 = 6
	tagFuncName  uint8 = 7
	tagMessage   uint8 = 8
)

var order = binary.LittleEndian

// Encode serializes rec into its stable tagged binary form.
func Encode(rec Record) []byte {
	buf := make([]byte, 0, 64+len(rec.FileName)+len(rec.FuncName)+len(rec.Message))

	buf = append(buf, tagLevel)
	buf = appendUint32(buf, uint32(rec.Level))

	buf = append(buf, tagTimestamp)
	buf = appendUint64(buf, uint64(rec.TimestampMs))

	buf = append(buf, tagProcessID)
	buf = appendUint32(buf, rec.ProcessID)

	buf = append(buf, tagThreadID)
	buf = appendUint32(buf, rec.ThreadID)

	buf = append(buf, tagLine)
	buf = appendUint32(buf, rec.Line)

	buf = append(buf, tagFileName)
	buf = appendString16(buf, rec.FileName)

	buf = append(buf, tagFuncName)
	buf = appendString16(buf, rec.FuncName)

	buf = append(buf, tagMessage)
	buf = appendBytes32(buf, rec.Message)

	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	order.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	order.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString16(buf []byte, s string) []byte {
	var tmp [2]byte
	order.PutUint16(tmp[:], uint16(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func appendBytes32(buf []byte, b []byte) []byte {
	var tmp [4]byte
	order.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	return append(buf, b...)
}

// Decode parses the tagged binary form produced by Encode. Unknown trailing
// bytes past a malformed tag are an error; fields the encoder omitted
// default to zero / empty.
func Decode(data []byte) (Record, error) {
	var rec Record
	i := 0
	for i < len(data) {
		tag := data[i]
		i++
		switch tag {
		case tagLevel:
			v, n, err := readUint32(data, i)
			if err != nil {
				return rec, err
			}
			rec.Level = Level(v)
			i = n
		case tagTimestamp:
			v, n, err := readUint64(data, i)
			if err != nil {
				return rec, err
			}
			rec.TimestampMs = int64(v)
			i = n
		case tagProcessID:
			v, n, err := readUint32(data, i)
			if err != nil {
				return rec, err
			}
			rec.ProcessID = v
			i = n
		case tagThreadID:
			v, n, err := readUint32(data, i)
			if err != nil {
				return rec, err
			}
			rec.ThreadID = v
			i = n
		case tagLine:
			v, n, err := readUint32(data, i)
			if err != nil {
				return rec, err
			}
			rec.Line = v
			i = n
		case tagFileName:
			v, n, err := readString16(data, i)
			if err != nil {
				return rec, err
			}
			rec.FileName = v
			i = n
		case tagFuncName:
			v, n, err := readString16(data, i)
			if err != nil {
				return rec, err
			}
			rec.FuncName = v
			i = n
		case tagMessage:
			v, n, err := readBytes32(data, i)
			if err != nil {
				return rec, err
			}
			rec.Message = v
			i = n
		default:
			return rec, errors.E(errors.Format, "unknown record tag")
		}
	}
	return rec, nil
}

func readUint32(data []byte, i int) (uint32, int, error) {
	if i+4 > len(data) {
		return 0, 0, errors.E(errors.Format, "truncated uint32 field")
	}
	return order.Uint32(data[i : i+4]), i + 4, nil
}

func readUint64(data []byte, i int) (uint64, int, error) {
	if i+8 > len(data) {
		return 0, 0, errors.E(errors.Format, "truncated uint64 field")
	}
	return order.Uint64(data[i : i+8]), i + 8, nil
}

func readString16(data []byte, i int) (string, int, error) {
	if i+2 > len(data) {
		return "", 0, errors.E(errors.Format, "truncated string length")
	}
	n := int(order.Uint16(data[i : i+2]))
	i += 2
	if i+n > len(data) {
		return "", 0, errors.E(errors.Format, "truncated string data")
	}
	return string(data[i : i+n]), i + n, nil
}

func readBytes32(data []byte, i int) ([]byte, int, error) {
	if i+4 > len(data) {
		return nil, 0, errors.E(errors.Format, "truncated bytes length")
	}
	n := int(order.Uint32(data[i : i+4]))
	i += 4
	if i+n > len(data) {
		return nil, 0, errors.E(errors.Format, "truncated bytes data")
	}
	out := make([]byte, n)
	copy(out, data[i:i+n])
	return out, i + n, nil
}

// Placeholder encodes a short FormatError placeholder record in place of
// one that failed to encode, per spec.md §7 ("FormatError").
func Placeholder(reason string) []byte {
	return Encode(Record{
		Level:   Error,
		Message: []byte("<format error: " + reason + ">"),
	})
}
