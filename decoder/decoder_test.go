package decoder_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TMac-wei/mylogger/crypt"
	"github.com/TMac-wei/mylogger/decoder"
	"github.com/TMac-wei/mylogger/logfile"
	"github.com/TMac-wei/mylogger/record"
	"github.com/TMac-wei/mylogger/zstdcodec"
	"github.com/stretchr/testify/require"
)

func buildChunk(t *testing.T, serverPub []byte, recs []record.Record) []byte {
	clientPriv, clientPub, err := crypt.GenerateKeyPair()
	require.NoError(t, err)
	secret, err := crypt.SharedSecret(clientPriv, serverPub)
	require.NoError(t, err)
	aes, err := crypt.NewAESCrypt(secret)
	require.NoError(t, err)
	zs, err := zstdcodec.New()
	require.NoError(t, err)
	defer zs.Close()

	var items []byte
	for _, rec := range recs {
		encoded := record.Encode(rec)
		compressed, err := zs.Compress(encoded)
		require.NoError(t, err)
		cipher, err := aes.Encrypt(compressed)
		require.NoError(t, err)
		items = logfile.AppendItem(items, cipher)
	}
	return logfile.AppendChunk(nil, clientPub, items)
}

func TestRunDecodesSingleChunk(t *testing.T) {
	serverPriv, serverPub, err := crypt.GenerateKeyPair()
	require.NoError(t, err)

	rec := record.Record{
		Level:       record.Info,
		TimestampMs: 1_620_000_000_123,
		ProcessID:   1234,
		ThreadID:    5678,
		FileName:    "x.cpp",
		FuncName:    "F",
		Line:        42,
		Message:     []byte("hello"),
	}
	chunk := buildChunk(t, serverPub, []record.Record{rec})

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.log")
	outputPath := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(inputPath, chunk, 0o644))

	err = decoder.Run(decoder.Options{
		InputPath:     inputPath,
		ServerPrivHex: crypt.HexEncode(serverPriv),
		OutputPath:    outputPath,
		Pattern:       "[%l][%D:%S][%p:%t][%F:%f:%#]%v",
	})
	require.NoError(t, err)

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "[I][2021-05-03 00:00:00:1620000000][1234:5678][x.cpp:F:42]hello\n", string(out))
}

func TestRunRejectsShortServerKey(t *testing.T) {
	dir := t.TempDir()
	err := decoder.Run(decoder.Options{
		InputPath:     filepath.Join(dir, "missing.log"),
		ServerPrivHex: "deadbeef",
		OutputPath:    filepath.Join(dir, "out.txt"),
	})
	require.Error(t, err)
}

func TestRunFlushesEarlierChunksOnLaterCorruption(t *testing.T) {
	serverPriv, serverPub, err := crypt.GenerateKeyPair()
	require.NoError(t, err)

	good := buildChunk(t, serverPub, []record.Record{{Message: []byte("ok")}})
	corrupt := make([]byte, logfile.ChunkHeaderSize)
	for i := range corrupt {
		corrupt[i] = 0xFF
	}

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.log")
	outputPath := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(inputPath, append(good, corrupt...), 0o644))

	err = decoder.Run(decoder.Options{
		InputPath:     inputPath,
		ServerPrivHex: crypt.HexEncode(serverPriv),
		OutputPath:    outputPath,
	})
	require.Error(t, err)

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Contains(t, string(out), "ok")
}

func TestRunRejectsHugeChunkSizeWithoutPanicking(t *testing.T) {
	serverPriv, _, err := crypt.GenerateKeyPair()
	require.NoError(t, err)

	huge := logfile.EncodeChunkHeader(logfile.ChunkHeader{
		Size:       ^uint64(0) - 1,
		PeerPubKey: make([]byte, logfile.PublicKeySize),
	})

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.log")
	outputPath := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(inputPath, huge, 0o644))

	err = decoder.Run(decoder.Options{
		InputPath:     inputPath,
		ServerPrivHex: crypt.HexEncode(serverPriv),
		OutputPath:    outputPath,
	})
	require.Error(t, err)
}
