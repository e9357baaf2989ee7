package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/scanner"
)

// ErrKeyword reports that a bare keyword token was found where an object was
// expected.
var ErrKeyword = errors.New("keyword token")

// ReadValue reads the next value from the scanner. When the next token is a
// keyword that is not a self-delimiting object (true/false/null), the token
// is returned with a nil object and ErrKeyword; content-stream parsing uses
// this to detect operators.
func ReadValue(sc *scanner.Scanner) (raw.Object, scanner.Token, error) {
	tok, err := sc.Next()
	if err != nil {
		return nil, scanner.Token{}, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, tok, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.IsHex}, tok, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			if ref, ok := tryRef(sc, tok); ok {
				return ref, tok, nil
			}
			return raw.NumberObj{I: tok.Int, IsInt: true}, tok, nil
		}
		return raw.NumberObj{F: tok.Num}, tok, nil
	case scanner.TokenArrayOpen:
		arr := &raw.ArrayObj{}
		for {
			item, itemTok, err := ReadValue(sc)
			if err != nil {
				if errors.Is(err, ErrKeyword) {
					return nil, itemTok, fmt.Errorf("unexpected keyword %q in array", itemTok.Str)
				}
				if errors.Is(err, io.EOF) {
					return nil, tok, io.ErrUnexpectedEOF
				}
				return nil, tok, err
			}
			if item == nil {
				return arr, tok, nil // array close
			}
			arr.Append(item)
		}
	case scanner.TokenArrayClose:
		return nil, tok, nil
	case scanner.TokenDictOpen:
		return readDictBody(sc, tok)
	case scanner.TokenDictClose:
		return nil, tok, fmt.Errorf("unexpected '>>'")
	case scanner.TokenKeyword:
		switch tok.Str {
		case "true":
			return raw.BoolObj{V: true}, tok, nil
		case "false":
			return raw.BoolObj{V: false}, tok, nil
		case "null":
			return raw.NullObj{}, tok, nil
		}
		return nil, tok, ErrKeyword
	}
	return nil, tok, fmt.Errorf("unexpected token type %d", tok.Type)
}

func readDictBody(sc *scanner.Scanner, open scanner.Token) (raw.Object, scanner.Token, error) {
	dict := raw.Dict()
	for {
		tok, err := sc.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, open, io.ErrUnexpectedEOF
			}
			return nil, open, err
		}
		if tok.Type == scanner.TokenDictClose {
			return dict, open, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, open, fmt.Errorf("dict key is not a name (token type %d)", tok.Type)
		}
		val, valTok, err := ReadValue(sc)
		if err != nil {
			if errors.Is(err, ErrKeyword) {
				return nil, open, fmt.Errorf("unexpected keyword %q as dict value", valTok.Str)
			}
			return nil, open, err
		}
		if val == nil {
			return nil, open, errors.New("unterminated dictionary")
		}
		dict.Set(tok.Str, val)
	}
}

// tryRef checks whether the integer just read begins an "N G R" indirect
// reference; if not, the scanner is rewound.
func tryRef(sc *scanner.Scanner, numTok scanner.Token) (raw.RefObj, bool) {
	rewind := sc.Position()
	genTok, err := sc.Next()
	if err != nil || genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		sc.Seek(rewind)
		return raw.RefObj{}, false
	}
	rTok, err := sc.Next()
	if err != nil || rTok.Type != scanner.TokenKeyword || rTok.Str != "R" {
		sc.Seek(rewind)
		return raw.RefObj{}, false
	}
	return raw.Ref(int(numTok.Int), int(genTok.Int)), true
}

// ReadObject reads a complete direct object, rejecting bare keywords.
func ReadObject(sc *scanner.Scanner) (raw.Object, error) {
	obj, tok, err := ReadValue(sc)
	if err != nil {
		if errors.Is(err, ErrKeyword) {
			return nil, fmt.Errorf("unexpected keyword %q", tok.Str)
		}
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("unexpected collection close")
	}
	return obj, nil
}
