package record_test

import (
	"testing"

	"github.com/TMac-wei/mylogger/record"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
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
	encoded := record.Encode(rec)
	decoded, err := record.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestAbsentFieldsDefaultToZero(t *testing.T) {
	decoded, err := record.Decode(nil)
	require.NoError(t, err)
	require.Equal(t, record.Record{}, decoded)
}

func TestUnknownTagIsFormatError(t *testing.T) {
	_, err := record.Decode([]byte{0xFF})
	require.Error(t, err)
}
