package landingzone

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalConfirm(t *testing.T) {
	var out bytes.Buffer
	confirm := TerminalConfirm(strings.NewReader("y\nno\n  YES  \n\n"), &out)

	require.True(t, confirm("Use it?"))
	require.False(t, confirm("Create?"))
	require.True(t, confirm("Really?"))
	require.False(t, confirm("Empty answer?"))
	require.False(t, confirm("End of input?"))

	require.True(t, strings.HasPrefix(out.String(), "Use it? [yN] Create? [yN] "))
}

func TestAlwaysYes(t *testing.T) {
	require.True(t, AlwaysYes("anything"))
}
