// Command sga-unpack extracts an SGA archive to a directory tree.
//
// Usage:
//
//	sga-unpack [flags] archive.sga
//
// Files are written under the output directory at their archive paths, with
// the drive alias as the first directory (its colon stripped). By default
// the first failing file aborts the run; -keep-going reports the failure
// and continues with the next file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/relictools/sga"
	_ "github.com/relictools/sga/sgav2"
)

type config struct {
	out       string
	unique    bool
	keepGoing bool
	quiet     bool
}

func main() {
	log.SetFlags(0)

	var cfg config
	flag.StringVar(&cfg.out, "out", ".", "output directory")
	flag.BoolVar(&cfg.unique, "unique", false, "prefix output with the archive's base name")
	flag.BoolVar(&cfg.keepGoing, "keep-going", false, "report per-file failures and continue instead of aborting")
	flag.BoolVar(&cfg.quiet, "quiet", false, "suppress per-file progress output")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] archive.sga\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), cfg); err != nil {
		log.Fatalf("sga-unpack: %v", err)
	}
}

func run(path string, cfg config) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	// Lazy read: each file's bytes are pulled from the stream as it is
	// extracted, so the whole archive never sits in memory at once.
	archive, err := sga.Open(in, sga.WithLazy(true))
	if err != nil {
		return err
	}

	outDir := cfg.out
	if cfg.unique {
		outDir = filepath.Join(outDir, baseName(path))
	}

	if !cfg.quiet {
		log.Printf("unpacking %q to %s", archive.ArchiveName(), outDir)
	}

	var failed int
	for file := range archive.WalkFiles() {
		if err := extract(file, outDir, cfg); err != nil {
			if !cfg.keepGoing {
				return err
			}
			failed++
			log.Printf("error: %v", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func extract(file sga.FileNode, outDir string, cfg config) error {
	rel := filepath.FromSlash(file.PortablePath())
	dest := filepath.Join(outDir, rel)

	data, err := file.Data()
	if err != nil {
		return fmt.Errorf("read %s: %w", file.Path(), err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	if !cfg.quiet {
		log.Printf("  %s", rel)
	}
	return nil
}

// baseName strips the directory and extension from an archive path.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
