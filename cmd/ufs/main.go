// Command ufs is the CLI front-end: start a peer node, or drive a
// running node's upload/download/list operations. It follows the
// teacher's own main.go — direct construction and no CLI framework
// (none appears anywhere in the example pack for this concern) — just
// generalized from a single demo self-send into the five subcommands
// the store needs to be exercised from a terminal.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rajiknows/ufs/internal/bootstrap"
	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/fileops"
	"github.com/rajiknows/ufs/internal/node"
	"github.com/rajiknows/ufs/internal/routing"
	"github.com/rajiknows/ufs/internal/store"
)

const exitUsage = 2
const exitFailure = 1

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	switch args[0] {
	case "server":
		return runServer(args[1:])
	case "upload":
		return runUpload(args[1:])
	case "download":
		return runDownload(args[1:])
	case "list-files":
		return runListFiles(args[1:])
	case "list-peers":
		return runListPeers(args[1:])
	default:
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ufs <server|upload|download|list-files|list-peers> [flags]")
}

func runServer(args []string) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	port := fs.Int("port", 9000, "UDP port to listen on")
	bootstrapAddr := fs.String("bootstrap", "", "address of a peer to bootstrap from")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	n := node.New(addr)
	fmt.Printf("node id = %s, listening on %s\n", n.ID, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	go func() {
		if *bootstrapAddr == "" {
			return
		}
		if err := bootstrap.Join(ctx, n, *bootstrapAddr); err != nil {
			fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		}
	}()

	if err := n.Start(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		return exitFailure
	}
	return 0
}

// clientFlag registers --node-addr on fs: the address of the
// already-running node a client subcommand talks to. The spec names no
// flag for this; --node-addr is the pragmatic choice every client
// subcommand shares.
func clientFlag(fs *flag.FlagSet) *string {
	return fs.String("node-addr", "127.0.0.1:9000", "address of a running node to talk to")
}

// newClientNode builds a throwaway node bound to its own ephemeral
// address and starts its listener in the background. Every RPC in this
// system is answered by the remote peer dialing back to the request's
// SenderAddr (see transport.Send / node.reply), so a client that never
// listens can never receive a response — this is why the CLI cannot
// simply construct a node.Node addressed as the target and call it
// in-process. target is seeded into the routing table so lookups and
// single-hop RPCs have a network entry point. The caller must invoke
// the returned cancel func to stop the listener once done.
func newClientNode(target string) (*node.Node, context.Context, func(), error) {
	selfAddr, err := ephemeralAddr()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("allocate client address: %w", err)
	}

	n := node.New(selfAddr)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := n.Start(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "client listener: %v\n", err)
		}
	}()
	// Give the listener goroutine a moment to bind before any RPC is
	// issued, the same demo-harness pattern the teacher used for its
	// own self-send warm-up.
	time.Sleep(100 * time.Millisecond)

	n.Table.Insert(ctx, routing.PeerRecord{NodeID: digest.FromAddress(target), Address: target})
	return n, ctx, cancel, nil
}

// ephemeralAddr reserves a free UDP port on loopback and returns its
// address string, without holding the socket open.
func ephemeralAddr() (string, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		return "", err
	}
	addr := conn.LocalAddr().String()
	conn.Close()
	return addr, nil
}

func runUpload(args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	path := fs.String("path", "", "path of the file to upload")
	target := clientFlag(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "upload: --path is required")
		return exitUsage
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload: %v\n", err)
		return exitFailure
	}

	n, ctx, cancel, err := newClientNode(*target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload: %v\n", err)
		return exitFailure
	}
	defer cancel()

	chunks := store.Chunks(data)
	hashes := make([]digest.ID, len(chunks))
	for i, c := range chunks {
		hashes[i] = digest.Sum(c)
	}
	meta := store.FileMetadata{Name: fileNameOf(*path), Size: uint64(len(data)), ChunkHashes: hashes}
	fileID := meta.FileID()

	if err := n.InitiateUploadAt(ctx, *target, fileID, meta); err != nil {
		fmt.Fprintf(os.Stderr, "upload: initiate: %v\n", err)
		return exitFailure
	}
	for i, c := range chunks {
		if err := n.UploadChunkAt(ctx, *target, hashes[i], c); err != nil {
			fmt.Fprintf(os.Stderr, "upload: chunk %d: %v\n", i, err)
			return exitFailure
		}
	}
	// Register the target as the provider of its own upload so a
	// FIND_VALUE against it resolves immediately.
	if err := n.StoreAt(ctx, *target, fileID, *target); err != nil {
		fmt.Fprintf(os.Stderr, "upload: announce: %v\n", err)
		return exitFailure
	}

	fmt.Println(fileID)
	return 0
}

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	hashHex := fs.String("hash", "", "hex FileID to download")
	output := fs.String("output", "", "path to write the reassembled file")
	target := clientFlag(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *hashHex == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "download: --hash and --output are required")
		return exitUsage
	}

	raw, err := hex.DecodeString(*hashHex)
	if err != nil || len(raw) != 32 {
		fmt.Fprintln(os.Stderr, "download: --hash must be 32 bytes of hex")
		return exitUsage
	}
	var fileID [32]byte
	copy(fileID[:], raw)

	n, ctx, cancel, err := newClientNode(*target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download: %v\n", err)
		return exitFailure
	}
	defer cancel()

	data, err := fileops.Download(ctx, n, fileID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download: %v\n", err)
		return exitFailure
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "download: %v\n", err)
		return exitFailure
	}
	return 0
}

func runListFiles(args []string) int {
	fs := flag.NewFlagSet("list-files", flag.ContinueOnError)
	target := clientFlag(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	n, ctx, cancel, err := newClientNode(*target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list-files: %v\n", err)
		return exitFailure
	}
	defer cancel()

	files, err := n.ListFilesAt(ctx, *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list-files: %v\n", err)
		return exitFailure
	}
	for _, f := range files {
		fmt.Printf("%s  %10d  %s\n", f.FileID, f.Size, f.Name)
	}
	return 0
}

func runListPeers(args []string) int {
	fs := flag.NewFlagSet("list-peers", flag.ContinueOnError)
	target := clientFlag(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	n, ctx, cancel, err := newClientNode(*target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list-peers: %v\n", err)
		return exitFailure
	}
	defer cancel()

	addrs, err := n.ListPeersAt(ctx, *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list-peers: %v\n", err)
		return exitFailure
	}
	for _, a := range addrs {
		fmt.Println(a)
	}
	return 0
}

func fileNameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
