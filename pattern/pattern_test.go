package pattern_test

import (
	"testing"

	"github.com/TMac-wei/mylogger/pattern"
	"github.com/TMac-wei/mylogger/record"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScenario(t *testing.T) {
	p := pattern.Compile("[%l][%D:%S][%p:%t][%F:%f:%#]%v")
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
	got := p.Render(rec)
	require.Equal(t, "[I][2021-05-03 00:00:00:1620000000][1234:5678][x.cpp:F:42]hello\n", got)
}

func TestUnknownDirectiveIsLiteral(t *testing.T) {
	p := pattern.Compile("%Q%%done")
	got := p.Render(record.Record{})
	require.Equal(t, "%Q%done\n", got)
}

func TestDefaultPattern(t *testing.T) {
	p := pattern.Compile("")
	rec := record.Record{Level: record.Fatal, ProcessID: 1}
	got := p.Render(rec)
	require.Contains(t, got, "[F]")
}
