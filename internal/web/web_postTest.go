package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/gin-gonic/gin"
)

// absentField is how the echo prints a form field that was not sent
const absentField = "None"

// postTest echoes a command posted by a timebook client
func (s *WebServer) postTest(c *gin.Context) {
	field := func(name string) string {
		if v, ok := c.GetPostForm(name); ok {
			return v
		}
		return absentField
	}

	raw, present := c.GetPostForm("args")
	args, err := encodeArgs(raw, present)
	if err != nil {
		s.failWithStatus(c, http.StatusBadRequest, err)
		return
	}
	c.String(http.StatusOK, "DATA RECEIVED: %s [%s since %s] %s(%s)",
		field("user"), field("current"), field("since"), field("command"), args)
}

// encodeArgs re-encodes the JSON args field the way timebook clients print
// JSON: ", " and ": " separators, non-ASCII escaped, key order kept. A
// missing field is an empty list.
func encodeArgs(raw string, present bool) (string, error) {
	if !present {
		return "[]", nil
	}
	out, err := reencodeJSON(raw)
	if err != nil {
		return "", fmt.Errorf("decode args %q: %w", raw, err)
	}
	return out, nil
}

type jsonFrame struct {
	object bool
	n      int // values and keys written
}

func reencodeJSON(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var b strings.Builder
	var stack []jsonFrame
	done := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if !done || len(stack) > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		if done {
			return "", errors.New("trailing data")
		}

		if d, ok := tok.(json.Delim); ok && (d == ']' || d == '}') {
			stack = stack[:len(stack)-1]
			b.WriteRune(rune(d))
			done = len(stack) == 0
			continue
		}
		if n := len(stack); n > 0 {
			top := &stack[n-1]
			switch {
			case top.object && top.n%2 == 1:
				b.WriteString(": ")
			case top.n > 0:
				b.WriteString(", ")
			}
			top.n++
		}

		switch v := tok.(type) {
		case json.Delim:
			b.WriteRune(rune(v))
			stack = append(stack, jsonFrame{object: v == '{'})
		case string:
			writeASCIIString(&b, v)
		case json.Number:
			num, err := formatNumber(v)
			if err != nil {
				return "", err
			}
			b.WriteString(num)
		case bool:
			b.WriteString(strconv.FormatBool(v))
		case nil:
			b.WriteString("null")
		}
		done = len(stack) == 0
	}
}

// formatNumber keeps integers as sent and prints floats in their shortest
// form with a fraction or exponent, e.g. 1.50 -> 1.5, 2.0 -> 2.0, 1e16 -> 1e+16
func formatNumber(n json.Number) (string, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if math.IsInf(f, 0) {
		if f > 0 {
			return "Infinity", nil
		}
		return "-Infinity", nil
	}
	if err != nil {
		return "", err
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	if exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:]); err == nil && (exp < -4 || exp >= 16) {
		return sci, nil
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out, nil
}

func writeASCIIString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				fmt.Fprintf(b, `\u%04x`, r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
