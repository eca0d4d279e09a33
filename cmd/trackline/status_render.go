package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type level int

const (
	levelInfo level = iota
	levelOK
	levelWarn
	levelError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	labelWidth = 18
	lineIndent = "  "
)

func (l level) label() string {
	switch l {
	case levelOK:
		return "OK"
	case levelWarn:
		return "WARN"
	case levelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l level) color() string {
	switch l {
	case levelOK:
		return ansiGreen
	case levelWarn:
		return ansiYellow
	case levelError:
		return ansiRed
	default:
		return ansiBlue
	}
}

// statusLine renders "  Label:  [LEVEL] message", colored when requested.
func statusLine(label string, lvl level, message string, colorize bool) string {
	tag := "[" + lvl.label() + "]"
	if message != "" {
		tag += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", lineIndent, labelWidth, label+":", tag)
	if colorize {
		return lvl.color() + line + ansiReset
	}
	return line
}

func sectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		return []string{ansiBlue + line + ansiReset, ansiBlue + rule + ansiReset}
	}
	return []string{line, rule}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
