package bundle

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fortio.org/log"
	"github.com/ldemailly/luabundle/minify"
)

// BannerPrefix starts the header line written before each source with Options.Banner.
const BannerPrefix = minify.CommentIntroducer + " file: "

// Split reverses a bundle written with Options.Banner: each banner starts a new
// file, created through create, that receives the following lines verbatim.
// Lines before the first banner are skipped. Names must be local relative paths.
// It returns the number of files written.
func Split(r io.Reader, create func(name string) (io.WriteCloser, error)) (n int, err error) {
	br := bufio.NewReader(r)
	var cur io.WriteCloser
	var curName string
	closeCur := func() error {
		if cur == nil {
			return nil
		}
		c := cur
		cur = nil
		if err := c.Close(); err != nil {
			return &SinkError{Path: curName, Err: err}
		}
		n++
		return nil
	}
	defer func() {
		if cerr := closeCur(); err == nil {
			err = cerr
		}
	}()
	lineNo := 0
	for {
		line, rerr := br.ReadString('\n')
		if line != "" {
			lineNo++
			body, _ := minify.SplitTerminator(line)
			if name, ok := strings.CutPrefix(body, BannerPrefix); ok {
				if err := closeCur(); err != nil {
					return n, err
				}
				name = strings.TrimSpace(name)
				if !filepath.IsLocal(filepath.FromSlash(name)) {
					return n, fmt.Errorf("line %d: refusing to write %q outside the output directory", lineNo, name)
				}
				log.Infof("  Extracting %s...", name)
				if cur, err = create(name); err != nil {
					return n, &SinkError{Path: name, Err: err}
				}
				curName = name
			} else if cur != nil {
				if _, err := io.WriteString(cur, line); err != nil {
					return n, &SinkError{Path: curName, Err: err}
				}
			} else {
				log.LogVf("Skipping line %d before the first banner", lineNo)
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, &SourceError{Name: "bundle", Line: lineNo + 1, Err: rerr}
		}
	}
}
