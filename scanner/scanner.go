package scanner

import (
	"bytes"
	"errors"
	"io"
)

type TokenType int

const (
	TokenDictOpen   TokenType = iota // '<<'
	TokenDictClose                   // '>>'
	TokenArrayOpen                   // '['
	TokenArrayClose                  // ']'
	TokenName                        // '/Name'
	TokenString                      // literal or hex string
	TokenNumber                      // numeric value
	TokenKeyword                     // obj, endobj, stream, R, true, null, operators, ...
)

type Token struct {
	Type  TokenType
	Str   string  // TokenName, TokenKeyword
	Bytes []byte  // TokenString (decoded payload)
	Num   float64 // TokenNumber
	Int   int64   // TokenNumber when IsInt
	IsInt bool
	IsHex bool // TokenString scanned as <...>
	Pos   int  // byte offset of the token start
	End   int  // byte offset just past the token
}

// ErrUnterminatedString reports a literal or hex string with no closing delimiter.
var ErrUnterminatedString = errors.New("unterminated string")

type Config struct {
	MaxStringLength int // 0 means no limit
}

// Scanner tokenizes PDF object syntax over an in-memory buffer. The same
// syntax covers file-level objects and content-stream operands, so the
// content-stream parser reuses it with an offset base.
type Scanner struct {
	data []byte
	pos  int
	cfg  Config
}

func New(data []byte, cfg Config) *Scanner {
	return &Scanner{data: data, cfg: cfg}
}

func (s *Scanner) Position() int { return s.pos }

func (s *Scanner) Seek(offset int) error {
	if offset < 0 || offset > len(s.data) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

// ReadRaw returns n bytes from the current position without tokenizing,
// used for stream payloads.
func (s *Scanner) ReadRaw(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.data) {
		return nil, io.ErrUnexpectedEOF
	}
	out := s.data[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}

// SkipEOL advances past a single CR, LF or CRLF, as found after the
// "stream" keyword.
func (s *Scanner) SkipEOL() {
	if s.pos < len(s.data) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < len(s.data) && s.data[s.pos] == '\n' {
		s.pos++
	}
}

func (s *Scanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Pos: start, End: s.pos}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Pos: start, End: s.pos}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start, End: s.pos}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Pos: start, End: s.pos}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayClose, Pos: start, End: s.pos}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start, End: s.pos}, nil
	}
	if isNumberStart(c) {
		return s.scanNumber()
	}
	return s.scanKeyword()
}

func (s *Scanner) peek(ahead int) byte {
	if s.pos+ahead >= len(s.data) {
		return 0
	}
	return s.data[s.pos+ahead]
}

// isWhitespace reports PDF whitespace (space, tab, CR, LF, FF, NUL).
func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (s *Scanner) skipWSAndComments() error {
	for {
		if s.pos >= len(s.data) {
			return io.EOF
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			i := bytes.IndexAny(s.data[s.pos:], "\r\n")
			if i < 0 {
				s.pos = len(s.data)
				return io.EOF
			}
			s.pos += i
			continue
		}
		return nil
	}
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < len(s.data) {
			out.WriteByte(hexNibble(s.data[s.pos+1])<<4 | hexNibble(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start, End: s.pos}, nil
}

func hexNibble(c byte) byte {
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

func (s *Scanner) scanNumber() (Token, error) {
	start := s.pos
	isInt := true
	if c := s.data[s.pos]; c == '+' || c == '-' {
		s.pos++
	}
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c == '.' {
			isInt = false
			s.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		s.pos++
	}
	text := string(s.data[start:s.pos])
	tok := Token{Type: TokenNumber, IsInt: isInt, Pos: start, End: s.pos}
	if isInt {
		tok.Int = parseInt(text)
		tok.Num = float64(tok.Int)
	} else {
		tok.Num = parseFloat(text)
	}
	return tok, nil
}

func parseInt(text string) int64 {
	var v int64
	neg := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '-':
			neg = true
		case '+':
		default:
			v = v*10 + int64(text[i]-'0')
		}
	}
	if neg {
		return -v
	}
	return v
}

func parseFloat(text string) float64 {
	var v, frac float64
	div := 1.0
	neg := false
	inFrac := false
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '-':
			neg = true
		case c == '+':
		case c == '.':
			inFrac = true
		case inFrac:
			div *= 10
			frac += float64(c-'0') / div
		default:
			v = v*10 + float64(c-'0')
		}
	}
	v += frac
	if neg {
		return -v
	}
	return v
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++ // lone delimiter byte, consume so the caller makes progress
	}
	return Token{Type: TokenKeyword, Str: string(s.data[start:s.pos]), Pos: start, End: s.pos}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for {
		if s.pos >= len(s.data) {
			return Token{}, ErrUnterminatedString
		}
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.pos >= len(s.data) {
				return Token{}, ErrUnterminatedString
			}
			esc := s.data[s.pos]
			switch esc {
			case 'n':
				buf.WriteByte('\n')
				s.pos++
			case 'r':
				buf.WriteByte('\r')
				s.pos++
			case 't':
				buf.WriteByte('\t')
				s.pos++
			case 'b':
				buf.WriteByte('\b')
				s.pos++
			case 'f':
				buf.WriteByte('\f')
				s.pos++
			case '\r':
				// line continuation, swallow optional LF
				s.pos++
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
				s.pos++
			default:
				if esc >= '0' && esc <= '7' {
					val := int(esc - '0')
					s.pos++
					for k := 0; k < 2 && s.pos < len(s.data); k++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val<<3 + int(d-'0')
						s.pos++
					}
					buf.WriteByte(byte(val))
				} else {
					buf.WriteByte(esc)
					s.pos++
				}
			}
		case '(':
			depth++
			buf.WriteByte(c)
			s.pos++
		case ')':
			depth--
			s.pos++
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start, End: s.pos}, nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
			s.pos++
		}
		if s.cfg.MaxStringLength > 0 && buf.Len() > s.cfg.MaxStringLength {
			return Token{}, errors.New("literal string too long")
		}
	}
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var nibbles []byte
	for {
		if s.pos >= len(s.data) {
			return Token{}, ErrUnterminatedString
		}
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		nibbles = append(nibbles, hexNibble(c))
		s.pos++
		if s.cfg.MaxStringLength > 0 && len(nibbles) > 2*s.cfg.MaxStringLength {
			return Token{}, errors.New("hex string too long")
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return Token{Type: TokenString, Bytes: out, IsHex: true, Pos: start, End: s.pos}, nil
}
