// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Galliumctl queries and controls a running gallium display server
// over its CBOR control socket.
//
// Usage:
//
//	galliumctl [flags] status
//	galliumctl [flags] capture <output>
//	galliumctl [flags] shutdown
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/LiterallyKirby/Galactica/config"
	"github.com/LiterallyKirby/Galactica/lib/codec"
	"github.com/LiterallyKirby/Galactica/lib/version"
	"github.com/LiterallyKirby/Galactica/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath  string
		showVersion bool
	)
	flag.StringVar(&socketPath, "socket", "", "control socket path (default: $XDG_RUNTIME_DIR/gallium-control)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("galliumctl %s\n", version.Info())
		return nil
	}
	if socketPath == "" {
		socketPath = filepath.Join(config.RuntimeDir(), "gallium-control")
	}

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: galliumctl [flags] status|capture <output>|shutdown")
	}

	switch args[0] {
	case "status":
		return status(socketPath)
	case "capture":
		if len(args) < 2 {
			return fmt.Errorf("usage: galliumctl capture <output>")
		}
		return capture(socketPath, args[1])
	case "shutdown":
		_, err := request(socketPath, map[string]any{"action": "shutdown"})
		if err == nil {
			fmt.Println("shutdown requested")
		}
		return err
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func status(socketPath string) error {
	data, err := request(socketPath, map[string]any{"action": "status"})
	if err != nil {
		return err
	}
	var st server.Status
	if err := codec.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}
	fmt.Printf("session:  %s\n", st.Session)
	fmt.Printf("clients:  %d\n", st.Clients)
	fmt.Printf("surfaces: %d\n", st.Surfaces)
	for _, out := range st.Outputs {
		fmt.Printf("output:   %s %dx%d, %d frames\n", out.Name, out.Width, out.Height, out.Frames)
	}
	return nil
}

func capture(socketPath, outputName string) error {
	data, err := request(socketPath, map[string]any{"action": "capture", "output": outputName})
	if err != nil {
		return err
	}
	var result struct {
		Path string `cbor:"path"`
	}
	if err := codec.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("decoding capture result: %w", err)
	}
	if result.Path == "" {
		fmt.Println("frame unchanged since last capture, skipped")
		return nil
	}
	fmt.Println(result.Path)
	return nil
}

// request performs one request-response cycle against the control
// socket and returns the response's data field.
func request(socketPath string, req any) (codec.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to control socket %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	var resp server.ControlResponse
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return resp.Data, nil
}
