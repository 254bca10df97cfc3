// Command odin-storaged serves a content-addressed storage backend over
// gRPC for ODIN verifiers and archivers.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"odinprotocol.io/odin/storage"
	"odinprotocol.io/odin/storage/grpcstore"
	"odinprotocol.io/odin/storage/localfs"
	"odinprotocol.io/odin/storage/memstore"
)

func main() {
	fs := flag.NewFlagSet("odin-storaged", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7420", "listen address")
	backend := fs.String("backend", "memory", "storage backend: memory or localfs")
	root := fs.String("root", "", "localfs root directory (required for -backend localfs)")

	_ = fs.Parse(os.Args[1:])

	var store storage.Store
	switch *backend {
	case "memory":
		store = memstore.New()
	case "localfs":
		if *root == "" {
			fmt.Fprintln(os.Stderr, "-backend localfs requires -root")
			os.Exit(2)
		}
		s, err := localfs.New(*root)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		store = s
	default:
		fmt.Fprintf(os.Stderr, "unknown backend: %s\n", *backend)
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcstore.RegisterStoreServer(s, &grpcstore.Server{Store: store})

	fmt.Fprintf(os.Stderr, "odin-storaged listening on %s (backend=%s)\n", lis.Addr().String(), *backend)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
