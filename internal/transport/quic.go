// Package transport provides the QUIC-based point-to-point connection
// layer: one unidirectional stream per wire.Message, mirroring the
// teacher's netquic package (netquic/node.go, netquic/peermanager.go).
// Unlike the teacher's Node, this Transport does not own a Router or a
// RelayRegistry — every RPC here is a direct dial to a known address
// (the spec's PeerRecord.Address), not a multi-hop relayed envelope, so
// there is nothing to forward and no address-book indirection to
// maintain beyond the connection pool itself.
package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/rajiknows/ufs/internal/frame"
	"github.com/rajiknows/ufs/internal/wire"
)

const alpn = "ufs-quic"

// generateTLSConfig builds a self-signed ECDSA certificate good enough
// to satisfy QUIC's TLS 1.3 requirement for an unauthenticated overlay.
// Transport encryption/authentication is explicitly out of scope for
// this system (see the purpose statement's Non-goals); this exists
// solely because QUIC cannot run without *some* TLS handshake.
func generateTLSConfig() *tls.Config {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		panic(err)
	}
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{alpn},
		Certificates:       []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}},
	}
}

func quicConfig() *quic.Config {
	return &quic.Config{MaxIdleTimeout: 3 * time.Minute}
}

// MessageHandler processes one decoded wire.Message received on an
// incoming stream.
type MessageHandler func(wire.Message)

// Transport owns the QUIC listener and the outbound connection pool.
type Transport struct {
	name    string
	onMsg   MessageHandler
	tlsConf *tls.Config

	mu    sync.Mutex
	conns map[string]*quic.Conn
}

// New returns a Transport that dispatches every received message to
// onMsg.
func New(name string, onMsg MessageHandler) *Transport {
	return &Transport{
		name:    name,
		onMsg:   onMsg,
		tlsConf: generateTLSConfig(),
		conns:   make(map[string]*quic.Conn),
	}
}

// ListenAndServe binds addr and serves incoming connections until ctx
// is cancelled or a fatal listener error occurs.
func (tr *Transport) ListenAndServe(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}

	listener, err := quic.Listen(udpConn, tr.tlsConf, quicConfig())
	if err != nil {
		return err
	}
	log.Printf("[%s] listening on %s", tr.name, addr)

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[%s] accept error: %v", tr.name, err)
			continue
		}
		go tr.handleConn(ctx, conn)
	}
}

func (tr *Transport) handleConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptUniStream(ctx)
		if err != nil {
			return
		}
		go tr.handleStream(stream)
	}
}

func (tr *Transport) handleStream(stream *quic.ReceiveStream) {
	data, err := io.ReadAll(stream)
	if err != nil {
		log.Printf("[%s] read stream: %v", tr.name, err)
		return
	}
	_, payload, err := frame.Decode(data)
	if err != nil {
		log.Printf("[%s] frame decode: %v", tr.name, err)
		return
	}
	msg, err := wire.Unmarshal(payload)
	if err != nil {
		log.Printf("[%s] wire decode: %v", tr.name, err)
		return
	}
	tr.onMsg(msg)
}

func (tr *Transport) getConn(addr string) (*quic.Conn, error) {
	tr.mu.Lock()
	conn := tr.conns[addr]
	tr.mu.Unlock()
	if conn != nil && conn.Context().Err() == nil {
		return conn, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	newConn, err := quic.Dial(context.Background(), udpConn, udpAddr, tr.tlsConf, quicConfig())
	if err != nil {
		return nil, err
	}

	tr.mu.Lock()
	tr.conns[addr] = newConn
	tr.mu.Unlock()
	return newConn, nil
}

// Send dials (or reuses a pooled connection to) addr and writes msg as
// a single framed, one-shot stream: open, write, close — the spec's
// "one-shot connect semantics" for outgoing RPC clients.
func (tr *Transport) Send(addr string, msg wire.Message) error {
	conn, err := tr.getConn(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	stream, err := conn.OpenUniStream()
	if err != nil {
		return fmt.Errorf("open stream to %s: %w", addr, err)
	}
	payload, err := wire.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	f := &frame.Frame{}
	f.Build(frame.TypeMessage, payload)

	if _, err := stream.Write(f.Raw); err != nil {
		return fmt.Errorf("write frame to %s: %w", addr, err)
	}
	return stream.Close()
}
