package hypervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/projecteru2/sealvm/types"
)

const escapeChar = 0x1D // ctrl+]

// Console attaches the caller's terminal to the VM's serial socket.
// Detach with ^] (ctrl+]).
func (s *Supervisor) Console(ctx context.Context, rec *types.StateRecord) error {
	if !rec.VM.Running() {
		return errors.New("VM not running; run `sealvm vm start` first")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", rec.VM.SerialSocket)
	if err != nil {
		return fmt.Errorf("dial serial %s: %w", rec.VM.SerialSocket, err)
	}
	defer conn.Close() //nolint:errcheck

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		fmt.Fprintf(os.Stderr, "\r\nDisconnected.\r\n")
	}()

	// Absorb SIGINT/SIGTERM so ^C reaches the guest instead of bypassing
	// the terminal restore.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
		}
	}()

	fmt.Fprintf(os.Stderr, "Connected to VM serial console (escape: ^]).\r\n")
	return relayConsole(ctx, conn)
}

// relayConsole runs bidirectional I/O between the user terminal and the
// serial socket until the escape character or either side closes.
func relayConsole(ctx context.Context, conn net.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2) //nolint:mnd

	// serial → stdout
	go func() {
		_, err := io.Copy(os.Stdout, conn)
		errCh <- err
		cancel()
	}()

	// stdin → serial, watching for the escape byte
	go func() {
		buf := make([]byte, 1024) //nolint:mnd
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			for i := range n {
				if buf[i] == escapeChar {
					errCh <- nil
					cancel()
					return
				}
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				errCh <- err
				cancel()
				return
			}
		}
	}()

	<-ctx.Done()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			return err
		}
	default:
	}
	return nil
}
