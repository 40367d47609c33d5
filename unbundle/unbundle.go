// Splits a bundle written by "luabundle -banner" back into its source files,
// one per "-- file: <name>" header line.

package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/ldemailly/luabundle/bundle"
)

func main() {
	dir := flag.String("dir", ".", "Directory to extract the files into")
	cli.ArgsHelp = "[bundle.lua]\nreads stdin when no bundle is given"
	cli.MinArgs = 0
	cli.MaxArgs = 1
	cli.Main()

	in := io.Reader(os.Stdin)
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatalf("Failed to open bundle: %v", err)
		}
		defer f.Close()
		in = f
	} else {
		log.Printf("Reading from stdin... Paste the bundle and signal EOF (Ctrl+D).")
	}
	n, err := bundle.Split(in, func(name string) (io.WriteCloser, error) {
		path := filepath.Join(*dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return os.Create(path)
	})
	if err != nil {
		log.Fatalf("Failed after %d files: %v", n, err)
	}
	log.Infof("Done, %d files extracted.", n)
}
