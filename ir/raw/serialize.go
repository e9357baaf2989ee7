package raw

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// AppendSerialized writes obj in PDF syntax. Dictionaries are emitted with
// sorted keys so output is deterministic.
func AppendSerialized(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case NameObj:
		buf.WriteByte('/')
		writeNameBytes(buf, v.Val)
	case NumberObj:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(strconv.FormatFloat(v.F, 'f', -1, 64))
		}
	case BoolObj:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case NullObj:
		buf.WriteString("null")
	case StringObj:
		if v.Hex {
			buf.WriteByte('<')
			for _, b := range v.Bytes {
				fmt.Fprintf(buf, "%02X", b)
			}
			buf.WriteByte('>')
		} else {
			buf.WriteByte('(')
			for _, b := range v.Bytes {
				switch b {
				case '(', ')', '\\':
					buf.WriteByte('\\')
					buf.WriteByte(b)
				case '\r':
					buf.WriteString(`\r`)
				default:
					buf.WriteByte(b)
				}
			}
			buf.WriteByte(')')
		}
	case *ArrayObj:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			AppendSerialized(buf, item)
		}
		buf.WriteByte(']')
	case *DictObj:
		buf.WriteString("<<")
		keys := make([]string, 0, len(v.KV))
		for k := range v.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteByte('/')
			writeNameBytes(buf, k)
			buf.WriteByte(' ')
			AppendSerialized(buf, v.KV[k])
		}
		buf.WriteString(">>")
	case *StreamObj:
		AppendSerialized(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	case RefObj:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	default:
		buf.WriteString("null")
	}
}

// writeNameBytes escapes name characters outside the regular range with the
// #xx form.
func writeNameBytes(buf *bytes.Buffer, name string) {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7F || c == '#' || c == '/' || c == '(' || c == ')' ||
			c == '<' || c == '>' || c == '[' || c == ']' || c == '{' || c == '}' || c == '%' {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}
