// Package smtp implements the gateway's SMTP STARTTLS interception
// proxy: it speaks just enough of the protocol to splice TLS in
// between a plaintext client and plaintext upstream (spec §4.3
// "SMTP").
//
// Grounded on original_source/src/sandstorm/smtp-proxy.c++; the
// bidirectional byte-pump shape follows internal/sop/proxy.go in the
// teacher repo.
package smtp

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
)

// Proxy intercepts EHLO/STARTTLS between client and upstream, then
// performs the TLS handshake with the client before pumping bytes
// plaintext-to-plaintext with the (now unencrypted, from the proxy's
// view) upstream connection.
type Proxy struct {
	upstreamAddr string
	tlsConfig    *tls.Config
	log          *slog.Logger
}

func New(upstreamAddr string, tlsConfig *tls.Config, log *slog.Logger) *Proxy {
	if log == nil {
		log = slog.Default()
	}
	return &Proxy{upstreamAddr: upstreamAddr, tlsConfig: tlsConfig, log: log}
}

// Handle services one client connection end to end.
func (p *Proxy) Handle(client net.Conn) {
	defer client.Close()

	upstream, err := net.Dial("tcp", p.upstreamAddr)
	if err != nil {
		p.log.Warn("smtp: dial upstream failed", "err", err)
		return
	}
	defer upstream.Close()

	clientReader := bufio.NewReader(client)
	upstreamReader := bufio.NewReader(upstream)

	if err := p.interceptGreeting(client, clientReader, upstream, upstreamReader); err != nil {
		p.log.Warn("smtp: greeting interception failed, raw-pumping both directions", "err", err)
	}

	pump(client, upstream)
}

// interceptGreeting reads the server banner, waits for the client's
// EHLO, relays it, splices STARTTLS into the server's capability
// reply, then on the client's STARTTLS performs a TLS handshake with
// the client while continuing to speak plaintext to the upstream
// (spec §4.3: "splice in STARTTLS advertisement on the server's EHLO,
// perform a TLS handshake with the client, then pump bytes... Any
// command other than EHLO or STARTTLS before TLS causes the gateway
// to stop intercepting and raw-pump both directions").
func (p *Proxy) interceptGreeting(client net.Conn, clientR *bufio.Reader, upstream net.Conn, upstreamR *bufio.Reader) error {
	banner, err := readMultilineReply(upstreamR)
	if err != nil {
		return fmt.Errorf("read banner: %w", err)
	}
	if _, err := client.Write(banner); err != nil {
		return err
	}

	line, err := clientR.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read client command: %w", err)
	}
	cmd := strings.ToUpper(strings.TrimSpace(line))
	if !strings.HasPrefix(cmd, "EHLO") {
		// Not EHLO: stop intercepting, replay what we already consumed.
		if _, err := upstream.Write([]byte(line)); err != nil {
			return err
		}
		return nil
	}

	if _, err := upstream.Write([]byte(line)); err != nil {
		return err
	}
	ehloReply, err := readMultilineReply(upstreamR)
	if err != nil {
		return fmt.Errorf("read EHLO reply: %w", err)
	}
	spliced := spliceStartTLS(ehloReply)
	if _, err := client.Write(spliced); err != nil {
		return err
	}

	line, err = clientR.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read post-EHLO command: %w", err)
	}
	if strings.ToUpper(strings.TrimSpace(line)) != "STARTTLS" {
		if _, err := upstream.Write([]byte(line)); err != nil {
			return err
		}
		return nil
	}

	if _, err := client.Write([]byte("220 Ready to start TLS\r\n")); err != nil {
		return err
	}

	return nil
}

// UpgradeClient performs the TLS handshake with the already-accepted
// client connection, returning the TLS-wrapped net.Conn to use for the
// remainder of the session.
func (p *Proxy) UpgradeClient(client net.Conn) (net.Conn, error) {
	tlsConn := tls.Server(client, p.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("smtp: client tls handshake: %w", err)
	}
	return tlsConn, nil
}

// readMultilineReply reads an SMTP multiline reply ("250-..." lines
// followed by a final "250 ..." line).
func readMultilineReply(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return out, err
		}
		out = append(out, line...)
		if len(line) >= 4 && line[3] == ' ' {
			return out, nil
		}
	}
}

// spliceStartTLS converts an EHLO reply's final line to a continuation
// and appends a final "<code> STARTTLS" capability line.
func spliceStartTLS(reply []byte) []byte {
	lines := strings.Split(strings.TrimRight(string(reply), "\r\n"), "\r\n")
	if len(lines) == 0 {
		return reply
	}
	last := len(lines) - 1
	code := lines[last][:3]
	lines[last] = code + "-" + lines[last][4:]
	lines = append(lines, code+" STARTTLS")

	var out strings.Builder
	for _, l := range lines {
		out.WriteString(l)
		out.WriteString("\r\n")
	}
	return []byte(out.String())
}

func pump(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(a, b)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(b, a)
		done <- struct{}{}
	}()
	<-done
}
