package driver

import (
	stderrors "errors"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/mcncl/txpool2json/internal/errors"
)

// Diagnostic describes err for a human. Located parse errors get the
// offending source line and a caret under the column; everything else
// falls back to errors.UserFriendlyError.
func Diagnostic(src string, err error) string {
	var perr *errors.ParseError
	if !stderrors.As(err, &perr) || perr.Line == 0 {
		return errors.UserFriendlyError(err)
	}

	msg := errors.UserFriendlyError(err)
	line, ok := sourceLine(src, perr.Line)
	if !ok {
		return msg
	}

	line = strings.ReplaceAll(strings.TrimRight(line, "\r"), "\t", " ")
	return msg + "\n" + line + "\n" + strings.Repeat(" ", caretOffset(line, perr.Column)) + "^"
}

func sourceLine(src string, n int) (string, bool) {
	for i := 1; i < n; i++ {
		idx := strings.IndexByte(src, '\n')
		if idx < 0 {
			return "", false
		}
		src = src[idx+1:]
	}
	if idx := strings.IndexByte(src, '\n'); idx >= 0 {
		src = src[:idx]
	}
	return src, true
}

// caretOffset returns the display width of the text before the 1-based rune
// column col, so wide characters keep the caret aligned.
func caretOffset(line string, col int) int {
	if col <= 1 {
		return 0
	}
	runes := []rune(line)
	if col-1 > len(runes) {
		return uniseg.StringWidth(line) + col - 1 - len(runes)
	}
	return uniseg.StringWidth(string(runes[:col-1]))
}
