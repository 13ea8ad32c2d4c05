package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tswhison/ticker/internal/provider"
)

// ErrInvalidTemplate is returned by Compile for templates containing an
// unknown or truncated field specifier.
var ErrInvalidTemplate = errors.New("invalid format template")

// Field specifiers, each optionally preceded by "-" (right justify),
// a width, and ".prec":
//
//	%t  symbol          %c  current price   %d  day change
//	%p  percent change  %h  day high        %l  day low
//	%o  day open        %C  previous close  %%  literal percent
//
// Width pads with spaces; the default justification is left, "-" flips it
// to right. Precision applies to the decimal value; without it the value
// renders in its shortest form.
const verbs = "tcdphloC%"

type field struct {
	verb         byte
	rightJustify bool
	width        int // -1 when absent
	prec         int // -1 when absent
}

type segment struct {
	literal string // used when field.verb == 0
	field   field
}

// Template is a compiled format template bound to no particular symbol.
// Compile once at configuration time; Render is safe for concurrent use.
type Template struct {
	src  string
	segs []segment
}

// Compile parses src into a Template. Unknown specifiers fail here, before
// any network activity, not at render time.
func Compile(src string) (*Template, error) {
	t := &Template{src: src}
	var lit strings.Builder
	i := 0
	for i < len(src) {
		if src[i] != '%' {
			lit.WriteByte(src[i])
			i++
			continue
		}
		f, next, err := parseField(src, i)
		if err != nil {
			return nil, err
		}
		if lit.Len() > 0 {
			t.segs = append(t.segs, segment{literal: lit.String()})
			lit.Reset()
		}
		t.segs = append(t.segs, segment{field: f})
		i = next
	}
	if lit.Len() > 0 {
		t.segs = append(t.segs, segment{literal: lit.String()})
	}
	return t, nil
}

// parseField parses one %[-][width][.prec]<verb> specifier starting at the
// '%' at src[i]. Returns the field and the offset just past it.
func parseField(src string, i int) (field, int, error) {
	f := field{width: -1, prec: -1}
	j := i + 1
	if j < len(src) && src[j] == '-' {
		f.rightJustify = true
		j++
	}
	start := j
	for j < len(src) && src[j] >= '0' && src[j] <= '9' {
		j++
	}
	if j > start {
		f.width, _ = strconv.Atoi(src[start:j])
	}
	if j < len(src) && src[j] == '.' {
		j++
		start = j
		for j < len(src) && src[j] >= '0' && src[j] <= '9' {
			j++
		}
		if j == start {
			return f, 0, fmt.Errorf("%w: missing precision after %q", ErrInvalidTemplate, src[i:j])
		}
		f.prec, _ = strconv.Atoi(src[start:j])
	}
	if j >= len(src) {
		return f, 0, fmt.Errorf("%w: template ends inside specifier %q", ErrInvalidTemplate, src[i:])
	}
	if strings.IndexByte(verbs, src[j]) < 0 {
		return f, 0, fmt.Errorf("%w: unknown specifier %q", ErrInvalidTemplate, src[i:j+1])
	}
	f.verb = src[j]
	return f, j + 1, nil
}

// Render produces the display text for one quote. Deterministic: the same
// quote always renders to the same string.
func (t *Template) Render(symbol string, q provider.Quote) string {
	var out strings.Builder
	out.Grow(len(t.src))
	for _, seg := range t.segs {
		if seg.field.verb == 0 {
			out.WriteString(seg.literal)
			continue
		}
		out.WriteString(renderField(seg.field, symbol, q))
	}
	return out.String()
}

// String returns the source the template was compiled from.
func (t *Template) String() string { return t.src }

func renderField(f field, symbol string, q provider.Quote) string {
	var s string
	switch f.verb {
	case 't':
		s = symbol
	case '%':
		s = "%"
	default:
		prec := f.prec
		if prec < 0 {
			prec = -1 // shortest representation
		}
		s = strconv.FormatFloat(fieldValue(f.verb, q), 'f', prec, 64)
	}
	if f.width > len(s) {
		pad := strings.Repeat(" ", f.width-len(s))
		if f.rightJustify {
			return pad + s
		}
		return s + pad
	}
	return s
}

func fieldValue(verb byte, q provider.Quote) float64 {
	switch verb {
	case 'c':
		return q.Current
	case 'd':
		return q.Change
	case 'p':
		return q.PercentChange
	case 'h':
		return q.High
	case 'l':
		return q.Low
	case 'o':
		return q.Open
	case 'C':
		return q.PreviousClose
	}
	return 0
}

// NoData is the sentinel rendering for a portfolio symbol the cache has no
// quote for.
func NoData(symbol string) string { return symbol + " n/a" }
