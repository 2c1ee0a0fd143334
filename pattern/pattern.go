// Package pattern implements the compiled text formatter of spec.md §4.6
// ("Pattern decoder (C6)"). A pattern string is compiled once into a slice
// of small renderer closures (literal text, level letter, timestamp, …) so
// that rendering a record never re-parses the pattern, per spec.md §9
// ("Pattern formatter as data, not control flow"). This generalizes the
// teacher's switch-based Level.String() rendering (github.com/grailbio/base
// log/log.go) into a compiled renderer pipeline.
package pattern

import (
	"strconv"
	"strings"
	"time"

	"github.com/TMac-wei/mylogger/record"
)

// Default is the pattern used when none is configured:
// one-letter level, raw millisecond timestamp, pid:tid, file:func:line,
// message.
const Default = "[%l][%M][%p:%t][%F:%f:%#]%v"

type renderFunc func(rec record.Record, sb *strings.Builder)

// Pattern is a compiled rendering pipeline.
type Pattern struct {
	renderers []renderFunc
}

// Compile parses a pattern string once into a Pattern.
func Compile(p string) *Pattern {
	if p == "" {
		p = Default
	}
	var renderers []renderFunc
	runes := []rune(p)
	var literal strings.Builder

	flushLiteral := func() {
		if literal.Len() == 0 {
			return
		}
		s := literal.String()
		renderers = append(renderers, func(rec record.Record, sb *strings.Builder) {
			sb.WriteString(s)
		})
		literal.Reset()
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '%' {
			literal.WriteRune(c)
			continue
		}
		if i+1 >= len(runes) {
			literal.WriteRune(c)
			break
		}
		i++
		directive := runes[i]
		fn, ok := directiveRenderer(directive)
		if !ok {
			// Any other %X is rendered as the literal two characters.
			literal.WriteRune('%')
			literal.WriteRune(directive)
			continue
		}
		flushLiteral()
		if fn != nil {
			renderers = append(renderers, fn)
		}
	}
	flushLiteral()
	return &Pattern{renderers: renderers}
}

func directiveRenderer(directive rune) (renderFunc, bool) {
	switch directive {
	case 'l':
		return renderLevel, true
	case 'D':
		return renderDateTime, true
	case 'S':
		return renderSeconds, true
	case 'M':
		return renderMillis, true
	case 'p':
		return renderPID, true
	case 't':
		return renderTID, true
	case 'F':
		return renderFile, true
	case 'f':
		return renderFunc_, true
	case '#':
		return renderLine, true
	case 'v':
		return renderMessage, true
	case '%':
		return func(rec record.Record, sb *strings.Builder) { sb.WriteByte('%') }, true
	default:
		return nil, false
	}
}

var levelLetters = map[record.Level]byte{
	record.Trace: 'V',
	record.Debug: 'D',
	record.Info:  'I',
	record.Warn:  'W',
	record.Error: 'E',
	record.Fatal: 'F',
}

func renderLevel(rec record.Record, sb *strings.Builder) {
	letter, ok := levelLetters[rec.Level]
	if !ok {
		letter = 'U'
	}
	sb.WriteByte(letter)
}

func renderDateTime(rec record.Record, sb *strings.Builder) {
	t := time.UnixMilli(rec.TimestampMs).UTC()
	sb.WriteString(t.Format("2006-01-02 15:04:05"))
}

func renderSeconds(rec record.Record, sb *strings.Builder) {
	sb.WriteString(strconv.FormatInt(rec.TimestampMs/1000, 10))
}

func renderMillis(rec record.Record, sb *strings.Builder) {
	sb.WriteString(strconv.FormatInt(rec.TimestampMs, 10))
}

func renderPID(rec record.Record, sb *strings.Builder) {
	sb.WriteString(strconv.FormatUint(uint64(rec.ProcessID), 10))
}

func renderTID(rec record.Record, sb *strings.Builder) {
	sb.WriteString(strconv.FormatUint(uint64(rec.ThreadID), 10))
}

func renderFile(rec record.Record, sb *strings.Builder) { sb.WriteString(rec.FileName) }

func renderFunc_(rec record.Record, sb *strings.Builder) { sb.WriteString(rec.FuncName) }

func renderLine(rec record.Record, sb *strings.Builder) {
	sb.WriteString(strconv.FormatUint(uint64(rec.Line), 10))
}

func renderMessage(rec record.Record, sb *strings.Builder) { sb.Write(rec.Message) }

// Render renders rec through the compiled pattern, terminated with a
// newline.
func (p *Pattern) Render(rec record.Record) string {
	var sb strings.Builder
	for _, fn := range p.renderers {
		fn(rec, &sb)
	}
	sb.WriteByte('\n')
	return sb.String()
}
