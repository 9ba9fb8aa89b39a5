package smtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpliceStartTLS_SingleLineReply(t *testing.T) {
	reply := []byte("250 example.com greets you\r\n")
	spliced := spliceStartTLS(reply)
	require.Contains(t, string(spliced), "250-example.com greets you\r\n")
	require.Contains(t, string(spliced), "250 STARTTLS\r\n")
}

func TestSpliceStartTLS_MultilineReply(t *testing.T) {
	reply := []byte("250-example.com greets you\r\n250-PIPELINING\r\n250 8BITMIME\r\n")
	spliced := spliceStartTLS(reply)
	lines := string(spliced)
	require.Contains(t, lines, "250-8BITMIME\r\n")
	require.Contains(t, lines, "250 STARTTLS\r\n")
}
