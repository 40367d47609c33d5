package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, manifestYAML string, files map[string]string, cmdline ...string) (string, *flags) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	mpath := filepath.Join(dir, "bundle.yaml")
	require.NoError(t, os.WriteFile(mpath, []byte(manifestYAML), 0o644))
	fs := flag.NewFlagSet("luabundle", flag.ContinueOnError)
	f := bindFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"-manifest", mpath}, cmdline...)))
	return dir, f
}

var mtatdFiles = map[string]string{
	"MTATD.lua":           "-- MTATD\nMTATD = {}\n\n",
	"Backend.lua":         "local s = [[hello]]\n",
	"MTAUnit/MTAUnit.lua": "MTAUnit = {} -- unit\nreturn MTAUnit\n",
}

const mtatdManifest = `files:
  - MTATD.lua
  - Backend.lua
  - MTAUnit/MTAUnit.lua
`

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMainRaw(t *testing.T) {
	dir, f := setup(t, mtatdManifest, mtatdFiles)
	assert.Equal(t, 0, Main([]string{"false"}, f))
	assert.Equal(t,
		"-- MTATD\nMTATD = {}\n\nlocal s = [[hello]]\nMTAUnit = {} -- unit\nreturn MTAUnit\n",
		readFile(t, filepath.Join(dir, "MTATD.bundle.lua")))
}

func TestMainMinify(t *testing.T) {
	dir, f := setup(t, mtatdManifest, mtatdFiles)
	assert.Equal(t, 0, Main([]string{"true"}, f))
	assert.Equal(t, "MTATD = {} local s = hello return MTAUnit ", readFile(t, filepath.Join(dir, "MTATD.bundle.lua")))
}

func TestMainModeFromManifest(t *testing.T) {
	dir, f := setup(t, "minify: true\noutput: out/app.lua\n"+mtatdManifest, mtatdFiles)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))
	assert.Equal(t, 0, Main(nil, f))
	assert.Equal(t, "MTATD = {} local s = hello return MTAUnit ", readFile(t, filepath.Join(dir, "out", "app.lua")))
}

func TestMainStrictAndBanner(t *testing.T) {
	files := map[string]string{"a.lua": "print('--') -- c\nlocal s = [[x]]\n"}
	dir, f := setup(t, "files: [a.lua]\n", files, "-strict")
	assert.Equal(t, 0, Main([]string{"yes"}, f))
	assert.Equal(t, "print('--') local s = [[x]] ", readFile(t, filepath.Join(dir, "MTATD.bundle.lua")))

	dir, f = setup(t, "files: [a.lua]\n", files, "-banner")
	assert.Equal(t, 0, Main([]string{"no"}, f))
	assert.Equal(t, "-- file: a.lua\n"+files["a.lua"], readFile(t, filepath.Join(dir, "MTATD.bundle.lua")))
}

func TestMainOutputAndSum(t *testing.T) {
	out := filepath.Join(t.TempDir(), "custom.lua")
	_, f := setup(t, mtatdManifest, mtatdFiles, "-o", out, "-sum")
	assert.Equal(t, 0, Main([]string{"0"}, f))
	sum := readFile(t, out+".sum")
	assert.True(t, strings.HasPrefix(sum, "h1:"), sum)
	assert.True(t, strings.HasSuffix(sum, " "+out+"\n"), sum)
}

func TestMainErrors(t *testing.T) {
	_, f := setup(t, mtatdManifest, mtatdFiles)
	assert.Equal(t, 1, Main([]string{"perhaps"}, f), "bad mode token")

	dir, f := setup(t, "files: [MTATD.lua, Missing.lua]\n", mtatdFiles)
	assert.Equal(t, 1, Main([]string{"true"}, f), "unreadable source")
	_, err := os.Stat(filepath.Join(dir, "MTATD.bundle.lua"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, f = setup(t, mtatdManifest, mtatdFiles, "-o", filepath.Join(t.TempDir(), "no", "such", "dir.lua"))
	assert.Equal(t, 1, Main(nil, f), "unwritable output")

	_, f = setup(t, "files: []\n", nil)
	assert.Equal(t, 1, Main(nil, f), "empty manifest")

	f.Manifest = filepath.Join(t.TempDir(), "absent.yaml")
	assert.Equal(t, 1, Main(nil, f), "missing manifest")
}

// touchUntil keeps writing to path until a rebuild is reported, since the
// watcher registers its directories asynchronously.
func touchUntil(t *testing.T, path string, rebuilt <-chan struct{}) {
	t.Helper()
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("x = 2\n"), 0o644)
		select {
		case <-rebuilt:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func startWatch(t *testing.T, paths []string, rebuild func(context.Context) ([]string, error)) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, paths, 20*time.Millisecond, rebuild)
	}()
	return cancel, done
}

func TestWatchRebuilds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.lua")
	other := filepath.Join(dir, "ignored.txt")
	require.NoError(t, os.WriteFile(src, []byte("x = 1\n"), 0o644))

	rebuilt := make(chan struct{}, 10)
	cancel, done := startWatch(t, []string{src}, func(context.Context) ([]string, error) {
		rebuilt <- struct{}{}
		return []string{src}, nil
	})

	_ = os.WriteFile(other, []byte("noise"), 0o644)
	touchUntil(t, src, rebuilt)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestWatchFollowsPathsFromRebuild(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.lua")
	added := filepath.Join(dir, "lib", "b.lua")
	require.NoError(t, os.WriteFile(src, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(added), 0o755))
	require.NoError(t, os.WriteFile(added, []byte("y = 1\n"), 0o644))

	rebuilt := make(chan struct{}, 10)
	startWatch(t, []string{src}, func(context.Context) ([]string, error) {
		rebuilt <- struct{}{}
		return []string{src, added}, nil
	})

	touchUntil(t, src, rebuilt)
	touchUntil(t, added, rebuilt)
}

func TestWatchBadDirectory(t *testing.T) {
	err := watch(context.Background(), []string{filepath.Join(t.TempDir(), "gone", "a.lua")}, time.Millisecond,
		func(context.Context) ([]string, error) { return nil, nil })
	assert.Error(t, err)
}

func TestBuilderRebuildPicksUpManifestChanges(t *testing.T) {
	dir, f := setup(t, "files: [MTATD.lua]\n", mtatdFiles)
	b, err := newBuilder(context.Background(), nil, f)
	require.NoError(t, err)
	require.NoError(t, b.build(context.Background()))
	out := filepath.Join(dir, "MTATD.bundle.lua")
	assert.Equal(t, mtatdFiles["MTATD.lua"], readFile(t, out))

	require.NoError(t, os.WriteFile(f.Manifest, []byte("minify: true\nfiles: [MTATD.lua, MTAUnit/MTAUnit.lua]\n"), 0o644))
	paths, err := b.rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MTATD = {} return MTAUnit ", readFile(t, out))
	assert.Equal(t, []string{
		filepath.Join(dir, "MTATD.lua"),
		filepath.Join(dir, "MTAUnit", "MTAUnit.lua"),
		f.Manifest,
	}, paths)
}

func TestBuilderRebuildAddsGitHubSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/contents/remote.lua" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("return remote\n")),
		})
	}))
	defer srv.Close()

	dir, f := setup(t, "files: [MTATD.lua]\n", mtatdFiles, "-cache=false", "-github-api", srv.URL)
	b, err := newBuilder(context.Background(), []string{"false"}, f)
	require.NoError(t, err)
	assert.Nil(t, b.resolver.GitHub)

	require.NoError(t, os.WriteFile(f.Manifest, []byte("files: [MTATD.lua, \"github:o/r/remote.lua\"]\n"), 0o644))
	paths, err := b.rebuild(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b.resolver.GitHub)
	assert.Equal(t, []string{filepath.Join(dir, "MTATD.lua"), f.Manifest}, paths)
	assert.Equal(t, mtatdFiles["MTATD.lua"]+"return remote\n", readFile(t, filepath.Join(dir, "MTATD.bundle.lua")))
}
