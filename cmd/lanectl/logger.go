package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/Swind/go-lane-dispatcher/core"
)

// colorLogger writes core.Logger messages with a colored level tag.
type colorLogger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	debug *color.Color
	info  *color.Color
	warn  *color.Color
	err   *color.Color
}

var _ core.Logger = (*colorLogger)(nil)

func newColorLogger(out io.Writer, verbose, noColor bool) *colorLogger {
	l := &colorLogger{
		out:     out,
		verbose: verbose,
		debug:   color.New(color.FgHiBlack),
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{l.debug, l.info, l.warn, l.err} {
			c.DisableColor()
		}
	}
	return l
}

func (l *colorLogger) Debug(msg string, fields ...core.Field) {
	if l.verbose {
		l.log(l.debug, "DEBUG", msg, fields)
	}
}

func (l *colorLogger) Info(msg string, fields ...core.Field)  { l.log(l.info, "INFO", msg, fields) }
func (l *colorLogger) Warn(msg string, fields ...core.Field)  { l.log(l.warn, "WARN", msg, fields) }
func (l *colorLogger) Error(msg string, fields ...core.Field) { l.log(l.err, "ERROR", msg, fields) }

func (l *colorLogger) log(c *color.Color, level, msg string, fields []core.Field) {
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05.000"), c.Sprintf("%-5s", level), msg)
	if rendered := core.FormatFields(fields...); rendered != "" {
		line += " " + rendered
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
