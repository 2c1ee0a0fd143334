// Package decoder implements the offline decoder driver of spec.md §4.10
// ("Decoder driver (C11)"): given an encrypted rolling log file and the
// server's private key, it walks chunks and items, decrypting,
// decompressing, decoding, and rendering each record to a plain-text
// output file. It ties together crypt (C4), zstdcodec (C3), record (C5),
// pattern (C6), and logfile (C10), generalizing the read side of the
// teacher's logio package and the offline tooling shape of
// original_source/decode/decode.cpp.
package decoder

import (
	"os"

	"github.com/TMac-wei/mylogger/crypt"
	"github.com/TMac-wei/mylogger/internal/errors"
	"github.com/TMac-wei/mylogger/logfile"
	"github.com/TMac-wei/mylogger/pattern"
	"github.com/TMac-wei/mylogger/record"
	"github.com/TMac-wei/mylogger/zstdcodec"
)

// progressInterval matches the original decoder's running item count,
// printed every 1000 items (original_source/decode/decode.cpp).
const progressInterval = 1000

// Options configures a decoding run.
type Options struct {
	InputPath       string
	ServerPrivHex   string
	OutputPath      string
	Pattern         string // empty uses pattern.Default
	ProgressHandler func(itemsDecoded int)
}

// Run decodes InputPath into OutputPath using ServerPrivHex, per spec.md
// §4.10's algorithm. Any corruption inside a chunk aborts the whole file
// with a diagnostic error, but output already flushed for earlier chunks
// is kept on disk.
func Run(opts Options) error {
	serverPriv, err := validateServerPrivHex(opts.ServerPrivHex)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return errors.E(errors.IO, "read input log file", err)
	}

	out, err := os.OpenFile(opts.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.E(errors.IO, "open output file", err)
	}
	defer out.Close()

	pat := pattern.Compile(opts.Pattern)
	zs, err := zstdcodec.New()
	if err != nil {
		return errors.E(errors.Codec, "init zstd session", err)
	}
	defer zs.Close()

	itemsDecoded := 0
	off := 0
	fileSize := len(data)

	for off < fileSize {
		chunkHeader, headerErr := logfile.DecodeChunkHeader(data[off:])
		if headerErr != nil {
			return errors.E(errors.Corruption, "decode chunk header", headerErr)
		}
		// DecodeChunkHeader already guarantees off+ChunkHeaderSize <=
		// fileSize, so this subtraction can't go negative; compare in
		// uint64 before narrowing chunkHeader.Size to an int, since a
		// corrupted Size near math.MaxUint64 would otherwise wrap to a
		// negative int and slip past a narrower check.
		remaining := uint64(fileSize - off - logfile.ChunkHeaderSize)
		if chunkHeader.Size > remaining {
			return errors.E(errors.Corruption, "Truncated: chunk payload runs past end of file")
		}

		aesCodec, err := aesCodecForChunk(serverPriv, chunkHeader.PeerPubKey)
		if err != nil {
			return err
		}

		payload := data[off+logfile.ChunkHeaderSize : off+logfile.ChunkHeaderSize+int(chunkHeader.Size)]
		rendered, _, err := decodeChunkItems(payload, aesCodec, zs, pat, &itemsDecoded, opts.ProgressHandler)
		if err != nil {
			if len(rendered) > 0 {
				out.Write(rendered)
			}
			return err
		}

		if _, werr := out.Write(rendered); werr != nil {
			return errors.E(errors.IO, "flush decoded chunk to output", werr)
		}

		off += logfile.ChunkHeaderSize + int(chunkHeader.Size)
	}

	return nil
}

func validateServerPrivHex(hexKey string) ([]byte, error) {
	if len(hexKey) != 64 {
		return nil, errors.E(errors.Config, "BadKey: server_private_hex must be exactly 64 hex characters")
	}
	priv, err := crypt.HexDecode(hexKey)
	if err != nil {
		return nil, errors.E(errors.Config, "BadKey: server_private_hex is not valid hex", err)
	}
	return priv, nil
}

func aesCodecForChunk(serverPriv, peerPubKey []byte) (*crypt.AESCrypt, error) {
	if len(peerPubKey) != logfile.PublicKeySize {
		return nil, errors.E(errors.Corruption, "BadKey: chunk public key is not 65 bytes")
	}
	secret, err := crypt.SharedSecret(serverPriv, peerPubKey)
	if err != nil {
		return nil, errors.E(errors.Corruption, "agree shared secret for chunk", err)
	}
	codec, err := crypt.NewAESCrypt(secret)
	if err != nil {
		return nil, errors.E(errors.Corruption, "build aes codec for chunk", err)
	}
	return codec, nil
}

// decodeChunkItems walks every item in a chunk's payload, rendering each
// decoded record with a trailing newline into the returned buffer. It
// returns as many rendered items as were successfully decoded even when it
// also returns an error.
func decodeChunkItems(payload []byte, aesCodec *crypt.AESCrypt, zs *zstdcodec.Session, pat *pattern.Pattern, itemsDecoded *int, progress func(int)) ([]byte, int, error) {
	var out []byte
	off := 0
	n := 0
	for off < len(payload) {
		itemHeader, err := logfile.DecodeItemHeader(payload[off:])
		if err != nil {
			return out, n, errors.E(errors.Corruption, "decode item header", err)
		}
		itemStart := off + logfile.ItemHeaderSize
		if uint64(itemHeader.Size) > uint64(len(payload)-itemStart) {
			return out, n, errors.E(errors.Corruption, "Truncated: item payload runs past chunk end")
		}
		itemEnd := itemStart + int(itemHeader.Size)
		cipher := payload[itemStart:itemEnd]

		compressed, err := aesCodec.Decrypt(cipher)
		if err != nil {
			return out, n, errors.E(errors.Corruption, "decrypt item", err)
		}
		encoded, err := zs.Decompress(compressed)
		if err != nil {
			return out, n, errors.E(errors.Corruption, "decompress item", err)
		}
		rec, err := record.Decode(encoded)
		if err != nil {
			return out, n, errors.E(errors.Corruption, "decode record", err)
		}

		out = append(out, pat.Render(rec)...)
		n++
		off = itemEnd

		*itemsDecoded++
		if progress != nil && *itemsDecoded%progressInterval == 0 {
			progress(*itemsDecoded)
		}
	}
	return out, n, nil
}
