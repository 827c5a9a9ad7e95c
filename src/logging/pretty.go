package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	color "git.handmade.network/hmn/forumwiki/src/ansicolor"
	"github.com/rs/zerolog"
)

/*
PrettyZerologWriter turns zerolog's JSON lines back into something a human can
read in a terminal. Entries with an error, extra fields, or a stack trace are
printed on multiple lines and fenced off from their neighbors.
*/
type PrettyZerologWriter struct {
	out                 io.Writer
	wd                  string
	wasLastLogMultiline bool
}

type PrettyLogEntry struct {
	Timestamp  string
	Level      string
	Message    string
	Error      string
	StackTrace []interface{}

	OtherFields []PrettyField
}

type PrettyField struct {
	Name  string
	Value interface{}
}

func levelColor(level string) string {
	switch level {
	case "trace", "debug":
		return color.Gray
	case "info":
		return color.BgBlue
	case "warn":
		return color.BgYellow
	default:
		return color.BgRed
	}
}

func NewPrettyZerologWriter() *PrettyZerologWriter {
	return NewPrettyZerologWriterTo(os.Stderr)
}

func NewPrettyZerologWriterTo(out io.Writer) *PrettyZerologWriter {
	wd, _ := os.Getwd()
	return &PrettyZerologWriter{
		out: out,
		wd:  wd,
	}
}

func (w *PrettyZerologWriter) Write(p []byte) (n int, err error) {
	// Anything unexpected in the JSON falls back to the raw line.
	defer func() {
		if r := recover(); r != nil {
			n, err = w.out.Write(p)
		}
	}()

	entry, ok := parseEntry(p)
	if !ok {
		return w.out.Write(p)
	}

	isMultiline := entry.Error != "" || entry.StackTrace != nil || entry.OtherFields != nil
	var b bytes.Buffer
	if isMultiline || w.wasLastLogMultiline {
		b.WriteString("---------------------------------------\n")
	}
	w.format(&b, entry)
	w.wasLastLogMultiline = isMultiline

	if _, err := w.out.Write(b.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func parseEntry(p []byte) (PrettyLogEntry, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return PrettyLogEntry{}, false
	}

	var entry PrettyLogEntry
	for name, val := range fields {
		switch name {
		case zerolog.TimestampFieldName:
			entry.Timestamp, _ = val.(string)
		case zerolog.LevelFieldName:
			entry.Level, _ = val.(string)
		case zerolog.MessageFieldName:
			entry.Message, _ = val.(string)
		case zerolog.ErrorFieldName:
			entry.Error, _ = val.(string)
		case zerolog.ErrorStackFieldName:
			entry.StackTrace, _ = val.([]interface{})
		default:
			entry.OtherFields = append(entry.OtherFields, PrettyField{Name: name, Value: val})
		}
	}
	sort.Slice(entry.OtherFields, func(i, j int) bool {
		return entry.OtherFields[i].Name < entry.OtherFields[j].Name
	})
	return entry, true
}

func (w *PrettyZerologWriter) format(b *bytes.Buffer, entry PrettyLogEntry) {
	b.WriteString(entry.Timestamp)
	b.WriteString(" ")
	if entry.Level != "" {
		b.WriteString(levelColor(entry.Level) + color.Bold + strings.ToUpper(entry.Level) + color.Reset + ": ")
	}
	b.WriteString(entry.Message)
	b.WriteString("\n")

	if entry.Error != "" {
		b.WriteString("  " + color.Bold + color.Red + "ERROR:" + color.Reset + " " + entry.Error + "\n")
	}
	if len(entry.OtherFields) > 0 {
		b.WriteString("  " + color.Bold + color.Blue + "Fields:" + color.Reset + "\n")
		for _, field := range entry.OtherFields {
			valuePretty, _ := json.MarshalIndent(field.Value, "    ", "  ")
			b.WriteString("    " + field.Name + ": " + string(valuePretty) + "\n")
		}
	}
	if entry.StackTrace != nil {
		b.WriteString("  " + color.Bold + color.Blue + "Stack trace:" + color.Reset + "\n")
		for _, frame := range entry.StackTrace {
			frameMap := frame.(map[string]interface{})
			file := strings.Replace(frameMap["file"].(string), w.wd, ".", 1)
			line := strconv.Itoa(int(frameMap["line"].(float64)))
			b.WriteString("    " + frameMap["function"].(string) + " (" + file + ":" + line + ")\n")
		}
	}
}
