package style

import (
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// Respect https://no-color.org/.
var isColor = IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""

const (
	Reset = 0
	Bold  = 1
	Red   = 31
	Green = 32
)

func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func StdoutSupportsColor() bool { return isColor }

func Seq(ms ...int) string {
	if len(ms) == 0 {
		return "\033[0m"
	}
	var b strings.Builder
	_, _ = b.WriteString("\033[")
	for i, m := range ms {
		if i != 0 {
			_ = b.WriteByte(';')
		}
		_, _ = b.WriteString(strconv.FormatInt(int64(m), 10))
	}
	_ = b.WriteByte('m')
	return b.String()
}

// Wrap surrounds s with the given SGR attributes if color is true.
func Wrap(color bool, s string, ms ...int) string {
	if !color {
		return s
	}
	return Seq(ms...) + s + Seq()
}

