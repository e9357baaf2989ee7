package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/docshield/pdfredact/observability"
)

// stderrLogger prints one line per event, key=value pairs appended.
type stderrLogger struct {
	bound []observability.Field
}

func (l stderrLogger) log(level, msg string, fields []observability.Field) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "redact: %s: %s", level, msg)
	for _, f := range append(l.bound, fields...) {
		fmt.Fprintf(&sb, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(os.Stderr, sb.String())
}

func (l stderrLogger) Debug(msg string, fields ...observability.Field) { l.log("debug", msg, fields) }
func (l stderrLogger) Info(msg string, fields ...observability.Field)  { l.log("info", msg, fields) }
func (l stderrLogger) Warn(msg string, fields ...observability.Field)  { l.log("warn", msg, fields) }
func (l stderrLogger) Error(msg string, fields ...observability.Field) { l.log("error", msg, fields) }

func (l stderrLogger) With(fields ...observability.Field) observability.Logger {
	return stderrLogger{bound: append(append([]observability.Field{}, l.bound...), fields...)}
}
