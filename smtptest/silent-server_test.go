package smtptest

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Every connection the server accepted has to be dropped by Close, even one
// accepted while Close is running.
func TestSilentServerCloseDropsConnections(t *testing.T) {
	for i := 0; i < 20; i++ {
		ss, err := NewSilentServer()
		require.NoError(t, err)
		go ss.Start()

		c, err := net.Dial("tcp", ss.Address())
		require.NoError(t, err)

		ss.Close()
		// Closing twice is fine.
		ss.Close()

		c.SetReadDeadline(time.Now().Add(time.Duration(5) * time.Second))
		_, err = c.Read(make([]byte, 1))
		c.Close()
		if err == nil {
			t.Fatalf("connection %v: the silent server wrote data", i)
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatalf("connection %v was left open after Close", i)
		}
	}
}
