// Package main writes a development CA and server certificate for the mood
// store. Start the server with -tls-cert/-tls-key and the client with -ca.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/moodmap/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs of the server")
	validFor := fs.Duration("valid", 365*24*time.Hour, "validity period")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var names []string
	for _, h := range strings.Split(*hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			names = append(names, h)
		}
	}
	bundle, err := certgen.Generate(names, *validFor)
	if err != nil {
		return err
	}
	if err := bundle.Write(*dir); err != nil {
		return err
	}
	fmt.Fprintf(out, "Certificates generated into %s\n", *dir)
	return nil
}
