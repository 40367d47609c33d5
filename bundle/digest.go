package bundle

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/sumdb/dirhash"
)

// Digest returns an "h1:" hash (the go.sum format) of the inputs of a run, as
// recorded in Stats.Inputs. The hashes are those of the bytes actually bundled,
// and each entry is named after its position, so reordering the sources changes
// the digest just as it changes the bundle.
func Digest(inputs []Input) (string, error) {
	names := make([]string, len(inputs))
	sums := make(map[string]string, len(inputs))
	for i, in := range inputs {
		names[i] = fmt.Sprintf("%05d %s", i, in.Name)
		sums[names[i]] = hex.EncodeToString(in.SHA256[:])
	}
	return dirhash.Hash1(names, func(name string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(sums[name])), nil
	})
}

// WriteSum records the digest of the inputs of output in output+".sum".
func WriteSum(output, digest string) error {
	sumPath := output + ".sum"
	if err := os.WriteFile(sumPath, []byte(fmt.Sprintf("%s %s\n", digest, output)), 0o644); err != nil {
		return &SinkError{Path: sumPath, Err: err}
	}
	return nil
}
