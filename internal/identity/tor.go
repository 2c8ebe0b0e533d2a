package identity

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Rotator changes the apparent network origin of subsequent requests.
// Rotate is side-effecting and fallible; after a successful rotation the
// new identity needs SettleDelay before it is usable.
type Rotator interface {
	Rotate(ctx context.Context) error
	SettleDelay() time.Duration
}

// TorRotator drives a local Tor daemon: requests flow through its SOCKS5
// port while Rotate asks the control port for a fresh circuit (NEWNYM).
type TorRotator struct {
	controlAddr string
	socksAddr   string
	password    string
	settle      time.Duration
}

// NewTorRotator points at a Tor daemon's SOCKS and control listeners.
// settle should cover circuit build time; 3s matches Tor's usual latency.
func NewTorRotator(socksAddr, controlAddr, password string, settle time.Duration) *TorRotator {
	if settle <= 0 {
		settle = 3 * time.Second
	}
	return &TorRotator{
		controlAddr: controlAddr,
		socksAddr:   socksAddr,
		password:    password,
		settle:      settle,
	}
}

// Dialer returns a context-aware dialer that routes through the Tor SOCKS
// port. The fetcher installs it as the transport's dialer so every request
// carries the current circuit's exit identity.
func (t *TorRotator) Dialer() (proxy.ContextDialer, error) {
	d, err := proxy.SOCKS5("tcp", t.socksAddr, nil, &net.Dialer{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer for %s: %w", t.socksAddr, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s does not support context dialing", t.socksAddr)
	}
	return cd, nil
}

// Rotate authenticates against the control port and signals NEWNYM.
func (t *TorRotator) Rotate(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.controlAddr)
	if err != nil {
		return fmt.Errorf("dial tor control %s: %w", t.controlAddr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(10 * time.Second))
	}

	r := bufio.NewReader(conn)
	if err := t.command(conn, r, fmt.Sprintf("AUTHENTICATE %q", t.password)); err != nil {
		return fmt.Errorf("tor authenticate: %w", err)
	}
	if err := t.command(conn, r, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("tor newnym: %w", err)
	}
	return nil
}

func (t *TorRotator) SettleDelay() time.Duration {
	return t.settle
}

func (t *TorRotator) command(conn net.Conn, r *bufio.Reader, cmd string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", cmd); err != nil {
		return err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "250") {
		return fmt.Errorf("unexpected control reply %q", strings.TrimSpace(line))
	}
	return nil
}
