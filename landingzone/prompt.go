package landingzone

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalConfirm asks questions on out and reads answers from in. Only
// answers starting with "y" or "Y" accept; end of input declines.
func TerminalConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	var mu sync.Mutex
	reader := bufio.NewReader(in)

	return func(question string) bool {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "%s [yN] ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return false
		}
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
	}
}

// AlwaysYes accepts every question.
func AlwaysYes(string) bool { return true }
