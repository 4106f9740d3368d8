package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// ConsoleWriter renders zerolog's JSON events as short colored lines.
type ConsoleWriter struct {
	out    io.Writer
	debug  bool
	colors colorstring.Colorize
	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter(out io.Writer, noColor, debug bool) *ConsoleWriter {
	return &ConsoleWriter{
		out:   out,
		debug: debug,
		colors: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor,
			Reset:   true,
		},
	}
}

func (w *ConsoleWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return 0, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal", "panic", "error":
		w.buffer.WriteString("[red]")
	case "warn":
		w.buffer.WriteString("[yellow]")
	case "debug", "trace":
		w.buffer.WriteString("[blue]")
	default:
		w.buffer.WriteString("[green]")
	}

	if target, ok := evt["target"].(string); ok {
		w.buffer.WriteString(target + ": ")
	}
	if evt["level"] == "error" {
		w.buffer.WriteString("Error: ")
	}
	if msg, ok := evt["message"].(string); ok {
		w.buffer.WriteString(msg)
	}
	if errorDetails, ok := evt["error"].(string); ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(errorDetails)
	}

	if w.debug {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("\n  %s: %+v", name, evt[name]))
		}
	}

	w.buffer.WriteString("\n")
	if _, err := io.WriteString(w.out, w.colors.Color(w.buffer.String())); err != nil {
		return 0, err
	}
	return len(p), nil
}
