// Command dsdnexus-mount shadows a directory of SACD images with a
// browsable tree of virtual Sony DSF files.
//
// The low-level sector/frame reader and DST decoder are external,
// opaque capabilities (see internal/sacdsource); this binary wires
// whatever implementation is linked in against the overlay. It runs
// no event loop of its own. No FUSE binding ships in this module, so the
// binary's job ends at building the overlay context and confirming it
// can walk its own root — wiring it into a real filesystem driver is
// the host layer's responsibility.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/overlay"
	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
)

var (
	threads        = flag.Int("threads", 2, "DST decoder threads per open area")
	cacheTimeout   = flag.Int("cache_timeout", 60, "idle seconds before an unused ISO's VFS is torn down")
	maxISOs        = flag.Int("max_isos", 0, "maximum simultaneously open ISOs (0 = unlimited)")
	noStereo       = flag.Bool("no_stereo", false, "hide the stereo area (still shown when it is the only area present)")
	noMultichannel = flag.Bool("no_multichannel", false, "hide the multichannel area (still shown when it is the only area present)")
	foreground     = flag.Bool("f", false, "run in the foreground")
	debug          = flag.Bool("d", false, "enable debug logging")
	allowTagEdits  = flag.Bool("allow_tag_edits", true, "accept writes to the virtual metadata region")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <source_dir> <mount_point>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Shadows source_dir at mount_point, replacing every SACD image it\n")
		fmt.Fprintf(os.Stderr, "finds with a browsable folder of virtual DSF files.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	sourceDir, mountPoint := flag.Arg(0), flag.Arg(1)

	if err := run(sourceDir, mountPoint); err != nil {
		fmt.Fprintf(os.Stderr, "dsdnexus-mount: %v\n", err)
		os.Exit(1)
	}
}

func run(sourceDir, mountPoint string) error {
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("starting", "source_dir", sourceDir, "mount_point", mountPoint, "foreground", *foreground)

	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("source_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source_dir %s is not a directory", sourceDir)
	}

	cfg := overlay.Config{
		MaxOpenISOs:         *maxISOs,
		IdleTimeout:         time.Duration(*cacheTimeout) * time.Second,
		DecoderThreads:      *threads,
		StereoVisible:       !*noStereo,
		MultichannelVisible: !*noMultichannel,
		FilenameMode:        pathutil.FilenameNumberTitle,
		AllowTagEdits:       *allowTagEdits,
	}

	ctx := overlay.New(sourceDir, afero.NewOsFs(), unboundOpener{}, unboundDecoderFactory, cfg, logger)
	defer func() {
		if err := ctx.Close(); err != nil {
			logger.Error("close", "error", err)
		}
	}()

	// Self-check: confirm the overlay root is walkable before handing
	// control to the (externally supplied) filesystem driver. This
	// mirrors what mount_point's getattr("/") would do on first access.
	if _, err := ctx.Readdir("/"); err != nil {
		return fmt.Errorf("walk %s: %w", sourceDir, err)
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return fmt.Errorf("mount_point: %w", err)
	}

	fmt.Printf("dsdnexus-mount: %s ready to shadow %s at %s\n", appVersion, sourceDir, mountPoint)
	return nil
}

const appVersion = "0.1.0"

// unboundOpener never recognises a candidate file as a valid SACD
// image. A real build links in the sector-level parser named in
// internal/sacdsource's doc comments; without one, every .iso file is
// left as a plain passthrough entry instead of a mount.
type unboundOpener struct{}

func (unboundOpener) Open(path string) (sacdsource.FrameSource, error) {
	return nil, fmt.Errorf("no SACD frame source implementation linked in (path=%s)", path)
}

func (unboundOpener) Probe(string) bool {
	return false
}

func unboundDecoderFactory(channels int) (sacdsource.DSTDecoder, error) {
	return nil, fmt.Errorf("no DST decoder implementation linked in (channels=%d)", channels)
}
