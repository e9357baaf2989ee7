package xref

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
)

var objHeaderRE = regexp.MustCompile(`(?m)^[\r\n ]*(\d+)[ ]+(\d+)[ ]+obj\b`)

// Repair reconstructs the table by scanning the whole file for
// "<num> <gen> obj" headers. The last definition of an object number wins,
// matching incremental-update semantics. The trailer is taken from the last
// "trailer" keyword; documents using cross-reference streams carry their
// trailer fields on the stream dictionary instead, so when no trailer
// keyword exists the caller must locate /Root by scanning for the catalog.
func Repair(data []byte, parseDict DictParser) (*Table, error) {
	table := &Table{Entries: make(map[int]Entry)}
	for _, m := range objHeaderRE.FindAllSubmatchIndex(data, -1) {
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		table.Entries[num] = Entry{Offset: int64(m[2]), Gen: gen}
	}
	if len(table.Entries) == 0 {
		return nil, errors.New("repair scan found no objects")
	}
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		pos := skipWS(data, idx+len("trailer"))
		if trailer, err := parseDict(pos); err == nil {
			table.Trailer = trailer
		}
	}
	return table, nil
}
