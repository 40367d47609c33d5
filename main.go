// luabundle concatenates the Lua files listed in a manifest into a single
// bundle, optionally minified, for interpreters that load one file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/ldemailly/luabundle/bundle"
	"github.com/ldemailly/luabundle/manifest"
	"github.com/ldemailly/luabundle/minify"
	"github.com/ldemailly/luabundle/source"
)

type flags struct {
	Manifest   string
	Output     string
	GitHubAPI  string
	Strict     bool
	Banner     bool
	Sum        bool
	Watch      bool
	Cache      bool
	ClearCache bool
	Debounce   time.Duration
}

func bindFlags(fs *flag.FlagSet) *flags {
	f := &flags{}
	fs.StringVar(&f.Manifest, "manifest", manifest.DefaultFile, "YAML manifest listing the files to bundle, in order")
	fs.StringVar(&f.Output, "o", "", "Output file (overrides the manifest's output)")
	fs.StringVar(&f.GitHubAPI, "github-api", "", "GitHub API base URL for github: sources (GitHub Enterprise)")
	fs.BoolVar(&f.Strict, "strict", false, "Lex Lua when minifying: keep \"--\" inside strings and keep long strings intact")
	fs.BoolVar(&f.Banner, "banner", false, "Prefix each file with a \"-- file: <name>\" line (non minified bundles only)")
	fs.BoolVar(&f.Sum, "sum", false, "Write the h1: hash of the inputs to <output>.sum")
	fs.BoolVar(&f.Watch, "watch", false, "Keep running and rebuild when a local input or the manifest changes")
	fs.BoolVar(&f.Cache, "cache", true, "Cache GitHub contents fetched at a pinned ref")
	fs.BoolVar(&f.ClearCache, "clear-cache", false, "Clear the GitHub cache before running")
	fs.DurationVar(&f.Debounce, "debounce", 300*time.Millisecond, "Delay before rebuilding after a change in -watch mode")
	return f
}

func main() {
	f := bindFlags(flag.CommandLine)
	cli.ProgramName = "luabundle"
	cli.ArgsHelp = "[true|false]\nwith true minifying the bundle (default: the manifest's minify value)"
	cli.MinArgs = 0
	cli.MaxArgs = 1
	cli.Main()
	os.Exit(Main(flag.Args(), f))
}

// Main runs the command and returns the process exit code.
func Main(args []string, f *flags) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	b, err := newBuilder(ctx, args, f)
	if err != nil {
		log.Errf("%v", err)
		return 1
	}
	if b.opts.Mode == minify.Minify {
		log.Printf("Minification: enabled")
	} else {
		log.Printf("Minification: disabled")
	}
	err = b.build(ctx)
	if !f.Watch {
		if err != nil {
			log.Errf("Bundle failed, discard %s: %v", b.output(), err)
			return 1
		}
		return 0
	}
	if err != nil {
		log.Errf("Initial build failed: %v", err)
	}
	if err := watch(ctx, b.watched(), f.Debounce, b.rebuild); err != nil {
		log.Errf("%v", err)
		return 1
	}
	return 0
}

type builder struct {
	manifestPath string
	manifest     *manifest.Manifest
	outputFlag   string
	opts         bundle.Options
	modeArg      bool
	sum          bool
	flags        *flags
	resolver     *source.Resolver
	sources      []bundle.Source
}

func newBuilder(ctx context.Context, args []string, f *flags) (*builder, error) {
	b := &builder{manifestPath: f.Manifest, outputFlag: f.Output, sum: f.Sum, flags: f}
	b.opts.Strict = f.Strict
	b.opts.Banner = f.Banner
	if len(args) > 0 {
		mode, err := minify.ParseMode(args[0])
		if err != nil {
			return nil, err
		}
		b.opts.Mode = mode
		b.modeArg = true
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	b.resolver = &source.Resolver{BaseDir: b.manifest.Dir}
	if err := b.resolve(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// resolve turns the manifest's files into sources, creating the GitHub client
// the first time a github: entry shows up.
func (b *builder) resolve(ctx context.Context) error {
	b.resolver.BaseDir = b.manifest.Dir
	if b.resolver.GitHub == nil && source.AnyGitHub(b.manifest.Files) {
		gh, err := newGitHub(ctx, b.flags)
		if err != nil {
			return err
		}
		b.resolver.GitHub = gh
	}
	sources, err := b.resolver.Resolve(b.manifest.Files)
	if err != nil {
		return err
	}
	b.sources = sources
	return nil
}

// watched lists the files whose changes trigger a rebuild.
func (b *builder) watched() []string {
	return append(source.LocalPaths(b.sources), b.manifestPath)
}

func newGitHub(ctx context.Context, f *flags) (*source.ClientWrapper, error) {
	cache := &source.Cache{Enabled: f.Cache}
	if f.Cache || f.ClearCache {
		dir, err := source.DefaultCacheDir()
		if err != nil {
			log.Warnf("GitHub cache disabled: %v", err)
			cache.Enabled = false
		}
		cache.Dir = dir
		if f.ClearCache && cache.Dir != "" {
			if err := cache.Clear(); err != nil {
				return nil, fmt.Errorf("clearing cache: %w", err)
			}
		}
	}
	client, err := source.NewGitHubClient(ctx, os.Getenv("GITHUB_TOKEN"), f.GitHubAPI)
	if err != nil {
		return nil, err
	}
	return source.NewClientWrapper(client, cache), nil
}

// load (re)reads the manifest. The command line mode wins over the manifest's.
func (b *builder) load() error {
	m, err := manifest.Load(b.manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("manifest %s not found (use -manifest): %w", b.manifestPath, err)
		}
		return err
	}
	b.manifest = m
	if !b.modeArg {
		b.opts.Mode = m.Mode()
	}
	log.LogVf("Manifest %s (%s): %d files", b.manifestPath, m.Label(), len(m.Files))
	return nil
}

func (b *builder) output() string {
	if b.outputFlag != "" {
		return b.outputFlag
	}
	return b.manifest.OutputPath()
}

func (b *builder) build(ctx context.Context) error {
	out := b.output()
	start := time.Now()
	st, err := bundle.File(ctx, out, b.sources, b.opts)
	if err != nil {
		return err
	}
	log.Infof("Wrote %s (%s) in %v: %v", out, b.opts.Mode, time.Since(start).Round(time.Millisecond), st)
	if !b.sum {
		return nil
	}
	digest, err := bundle.Digest(st.Inputs)
	if err != nil {
		return err
	}
	log.Infof("Inputs %s", digest)
	return bundle.WriteSum(out, digest)
}

// rebuild reloads the manifest, so list or mode edits apply, then builds. It
// returns the files to watch from now on, which follow the new manifest even
// when the build itself fails.
func (b *builder) rebuild(ctx context.Context) ([]string, error) {
	if err := b.load(); err != nil {
		return b.watched(), err
	}
	if err := b.resolve(ctx); err != nil {
		return b.watched(), err
	}
	return b.watched(), b.build(ctx)
}
