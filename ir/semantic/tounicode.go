package semantic

import (
	"bufio"
	"bytes"
	"sort"
	"strings"
	"unicode/utf16"
)

// toUnicodeMap holds a parsed ToUnicode CMap: source byte sequences mapped
// to Unicode text, plus the set of code lengths declared by the codespace.
type toUnicodeMap struct {
	entries map[string]string
	lengths []int // descending
}

// lookup decodes the leading code of data. ok is false when data does not
// start with any known code.
func (m *toUnicodeMap) lookup(data []byte) (text string, n int, ok bool) {
	for _, l := range m.lengths {
		if len(data) < l {
			continue
		}
		if val, found := m.entries[string(data[:l])]; found {
			return val, l, true
		}
	}
	return "", 0, false
}

// parseToUnicode reads the bfchar/bfrange/codespacerange sections of a
// ToUnicode CMap stream. The surrounding PostScript is ignored.
func parseToUnicode(data []byte) *toUnicodeMap {
	lines := bufio.NewScanner(bytes.NewReader(data))
	m := &toUnicodeMap{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})
	section := ""
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			section = "codespace"
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			section = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			section = "bfrange"
			continue
		case strings.HasPrefix(line, "endcodespacerange"),
			strings.HasPrefix(line, "endbfchar"),
			strings.HasPrefix(line, "endbfrange"):
			section = ""
			continue
		}
		switch section {
		case "codespace":
			if hexes := hexTokens(line); len(hexes) >= 1 {
				if b := hexBytes(hexes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			if len(hexes) < 2 {
				continue
			}
			src := hexBytes(hexes[0])
			dst := utf16BEString(hexBytes(hexes[1]))
			if len(src) > 0 {
				m.entries[string(src)] = dst
				lengthSet[len(src)] = struct{}{}
			}
		case "bfrange":
			line = joinUntilBalanced(line, lines)
			parseBFRange(line, m, lengthSet)
		}
	}
	if len(lengthSet) == 0 {
		for k := range m.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		m.lengths = append(m.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	if len(m.entries) == 0 && len(m.lengths) == 0 {
		return nil
	}
	return m
}

func parseBFRange(line string, m *toUnicodeMap, lengthSet map[int]struct{}) {
	hexes := hexTokens(line)
	if len(hexes) < 3 {
		return
	}
	srcStart := hexBytes(hexes[0])
	srcEnd := hexBytes(hexes[1])
	length := len(srcStart)
	if length == 0 || length != len(srcEnd) {
		return
	}
	lengthSet[length] = struct{}{}
	startVal := bytesToInt(srcStart)
	endVal := bytesToInt(srcEnd)
	if endVal-startVal > 1<<16 {
		return // refuse absurd ranges
	}
	if strings.Contains(line, "[") {
		// form: <lo> <hi> [<dst0> <dst1> ...]
		for i := 0; i <= endVal-startVal && 2+i < len(hexes); i++ {
			m.entries[string(intToBytes(startVal+i, length))] = utf16BEString(hexBytes(hexes[2+i]))
		}
		return
	}
	// form: <lo> <hi> <dstLo>, destination increments with the code
	dst := hexBytes(hexes[2])
	dstVal := bytesToInt(dst)
	for i := 0; i <= endVal-startVal; i++ {
		m.entries[string(intToBytes(startVal+i, length))] = utf16BEString(intToBytes(dstVal+i, len(dst)))
	}
}

// joinUntilBalanced appends following lines while a bfrange destination
// array is still open.
func joinUntilBalanced(line string, lines *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for lines.Scan() {
		next := strings.TrimSpace(lines.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func hexTokens(line string) []string {
	var out []string
	for {
		start := strings.IndexByte(line, '<')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(line[start+1:], '>')
		if end < 0 {
			return out
		}
		out = append(out, strings.ReplaceAll(line[start+1:start+1+end], " ", ""))
		line = line[start+end+2:]
	}
}

func hexBytes(s string) []byte {
	if len(s)%2 == 1 {
		s += "0"
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		out[i/2] = hexVal(s[i])<<4 | hexVal(s[i+1])
	}
	return out
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func intToBytes(v, length int) []byte {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func utf16BEString(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return ""
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(u))
}
