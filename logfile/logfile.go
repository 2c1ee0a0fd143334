// Package logfile implements the on-disk chunk and item framing of
// spec.md §4.10 ("File framing (C10)") together with the rolling-file
// naming scheme of §4.9. It generalizes the teacher's logio package
// (github.com/grailbio/base/logio)'s fixed binary record headers,
// replacing logio's block-padded, checksum-guarded records with the
// spec's simpler two-level magic+size framing (chunk wraps items; items
// never straddle chunk boundaries).
package logfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TMac-wei/mylogger/internal/errors"
)

var order = binary.LittleEndian

const (
	// ChunkMagic identifies a LogChunkHeader.
	ChunkMagic uint64 = 0xDEADBEEFDADA1100
	// ItemMagic identifies a LogItemHeader.
	ItemMagic uint32 = 0xBE5FBA11

	// PeerPubFieldSize is the fixed width of the chunk header's
	// peer_pub_key field; only the first PublicKeySize bytes are
	// meaningful.
	PeerPubFieldSize = 128
	// PublicKeySize is the length of a raw SEC1 uncompressed EC public key.
	PublicKeySize = 65

	// ChunkHeaderSize is the encoded size of a LogChunkHeader.
	ChunkHeaderSize = 8 + 8 + PeerPubFieldSize
	// ItemHeaderSize is the encoded size of a LogItemHeader.
	ItemHeaderSize = 4 + 4
)

// ChunkHeader precedes a flushed buffer's payload in a rolling log file.
type ChunkHeader struct {
	Size       uint64
	PeerPubKey []byte // raw SEC1 public key, up to PublicKeySize bytes
}

// EncodeChunkHeader serializes h to its fixed on-disk form.
func EncodeChunkHeader(h ChunkHeader) []byte {
	buf := make([]byte, ChunkHeaderSize)
	order.PutUint64(buf[0:8], ChunkMagic)
	order.PutUint64(buf[8:16], h.Size)
	n := len(h.PeerPubKey)
	if n > PeerPubFieldSize {
		n = PeerPubFieldSize
	}
	copy(buf[16:16+n], h.PeerPubKey[:n])
	return buf
}

// DecodeChunkHeader parses a LogChunkHeader from the front of data.
func DecodeChunkHeader(data []byte) (ChunkHeader, error) {
	if len(data) < ChunkHeaderSize {
		return ChunkHeader{}, errors.E(errors.Corruption, "Truncated: chunk header")
	}
	magic := order.Uint64(data[0:8])
	if magic != ChunkMagic {
		return ChunkHeader{}, errors.E(errors.Corruption, "BadMagic: chunk header")
	}
	size := order.Uint64(data[8:16])
	pub := make([]byte, PublicKeySize)
	copy(pub, data[16:16+PublicKeySize])
	return ChunkHeader{Size: size, PeerPubKey: pub}, nil
}

// ItemHeader precedes each encrypted record inside a chunk's payload.
type ItemHeader struct {
	Size uint32
}

// EncodeItemHeader serializes h to its fixed on-disk form.
func EncodeItemHeader(h ItemHeader) []byte {
	buf := make([]byte, ItemHeaderSize)
	order.PutUint32(buf[0:4], ItemMagic)
	order.PutUint32(buf[4:8], h.Size)
	return buf
}

// DecodeItemHeader parses a LogItemHeader from the front of data.
func DecodeItemHeader(data []byte) (ItemHeader, error) {
	if len(data) < ItemHeaderSize {
		return ItemHeader{}, errors.E(errors.Corruption, "Truncated: item header")
	}
	magic := order.Uint32(data[0:4])
	if magic != ItemMagic {
		return ItemHeader{}, errors.E(errors.Corruption, "BadMagic: item header")
	}
	return ItemHeader{Size: order.Uint32(data[4:8])}, nil
}

// AppendItem appends an item header followed by payload to buf.
func AppendItem(buf []byte, payload []byte) []byte {
	buf = append(buf, EncodeItemHeader(ItemHeader{Size: uint32(len(payload))})...)
	return append(buf, payload...)
}

// AppendChunk appends a chunk header followed by payload to buf.
func AppendChunk(buf []byte, peerPubKey []byte, payload []byte) []byte {
	buf = append(buf, EncodeChunkHeader(ChunkHeader{Size: uint64(len(payload)), PeerPubKey: peerPubKey})...)
	return append(buf, payload...)
}

// timestampFormat matches the spec's {prefix}_{YYYYMMDDhhmmss}.log naming.
const timestampFormat = "20060102150405"

// NextPath computes the path for a new rolling log file under directory,
// following spec.md §4.9's file rolling rule: a timestamped name, with a
// numeric "_<n>.log" suffix appended if that timestamp already has files
// in directory (n counts the existing collisions).
func NextPath(directory, prefix string, now time.Time) (string, error) {
	ts := now.UTC().Format(timestampFormat)
	base := fmt.Sprintf("%s_%s", prefix, ts)
	entries, err := os.ReadDir(directory)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.E(errors.IO, "read directory for rolling", err)
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), base) {
			count++
		}
	}
	if count == 0 {
		return filepath.Join(directory, base+".log"), nil
	}
	return filepath.Join(directory, fmt.Sprintf("%s_%d.log", base, count)), nil
}

// LogFileInfo describes one rolling log file for retention purposes.
type LogFileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListLogFiles lists the *.log files directly under directory, sorted by
// modification time descending (newest first), per spec.md §4.9's
// retention sweep ordering.
func ListLogFiles(directory string) ([]LogFileInfo, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.E(errors.IO, "read directory for retention", err)
	}
	var out []LogFileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, LogFileInfo{
			Path:    filepath.Join(directory, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}
