// Package bundle concatenates ordered Lua sources into a single artifact,
// running every line through the minify filter on the way.
package bundle

import (
	"bufio"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"fortio.org/log"
	"github.com/ldemailly/luabundle/minify"
)

// Source is one named input of the bundle.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

type Options struct {
	Mode   minify.Mode
	Strict bool // lexical comment removal instead of the substring heuristic (Minify only)
	Banner bool // "-- file: <name>" header before each source (Raw only)
}

// Stats are the counters of one run.
type Stats struct {
	Sources   int
	LinesRead int
	LinesKept int
	BytesIn   int64
	BytesOut  int64
	// Inputs holds the SHA-256 of every source as it was read, in bundle order.
	Inputs []Input
}

// Input is the content hash of one bundled source.
type Input struct {
	Name   string
	SHA256 [sha256.Size]byte
}

// Suppressed is the number of lines the filter dropped.
func (s Stats) Suppressed() int {
	return s.LinesRead - s.LinesKept
}

func (s Stats) String() string {
	return fmt.Sprintf("%d sources, %d/%d lines kept, %d -> %d bytes",
		s.Sources, s.LinesKept, s.LinesRead, s.BytesIn, s.BytesOut)
}

type sink struct {
	bw     *bufio.Writer
	st     *Stats
	lastNL bool
}

func (s *sink) write(frag string) error {
	if frag == "" {
		return nil
	}
	n, err := s.bw.WriteString(frag)
	s.st.BytesOut += int64(n)
	if err != nil {
		return &SinkError{Err: err}
	}
	s.lastNL = frag[len(frag)-1] == '\n'
	return nil
}

// Write streams sources, in order, line by line into w. It stops at the first
// source or write error; what was written to w before that is partial output.
func Write(ctx context.Context, w io.Writer, sources []Source, opts Options) (Stats, error) {
	var st Stats
	s := &sink{bw: bufio.NewWriter(w), st: &st, lastNL: true}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if err := s.source(ctx, src, opts); err != nil {
			return st, err
		}
		st.Sources++
	}
	if err := s.bw.Flush(); err != nil {
		return st, &SinkError{Err: err}
	}
	return st, nil
}

func (s *sink) source(ctx context.Context, src Source, opts Options) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return &SourceError{Name: src.Name(), Err: err}
	}
	defer rc.Close()
	log.LogVf("Bundling %s (%s)", src.Name(), opts.Mode)
	if opts.Banner && opts.Mode == minify.Raw {
		banner := BannerPrefix + src.Name() + "\n"
		if !s.lastNL {
			banner = "\n" + banner
		}
		if err := s.write(banner); err != nil {
			return err
		}
	}
	filter := minify.NewFilter(opts.Mode, opts.Strict)
	h := sha256.New()
	r := bufio.NewReader(io.TeeReader(rc, h))
	lineNo := 0
	for {
		line, rerr := r.ReadString('\n')
		if line != "" {
			lineNo++
			s.st.LinesRead++
			s.st.BytesIn += int64(len(line))
			if frag, ok := filter(line); ok {
				s.st.LinesKept++
				if err := s.write(frag); err != nil {
					return err
				}
			}
		}
		if rerr == io.EOF {
			in := Input{Name: src.Name()}
			h.Sum(in.SHA256[:0])
			s.st.Inputs = append(s.st.Inputs, in)
			return nil
		}
		if rerr != nil {
			return &SourceError{Name: src.Name(), Line: lineNo + 1, Err: rerr}
		}
	}
}
