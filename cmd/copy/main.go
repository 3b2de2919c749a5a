// Command copy copies a database environment to a new path, mirroring the
// original project's mdb_copy.c. The -c flag is passed to Env.CopyFD as
// CopyCompact, but CopyFD copies the used pages byte for byte whatever the
// flags, so the result is not compacted.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pagedb/pagedb"
)

func main() {
	compact := flag.Bool("c", false, "pass CopyCompact (the copy is still a raw page copy)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: copy [-c] SRC [DST]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}
	src := flag.Arg(0)
	dst := ""
	if flag.NArg() == 2 {
		dst = flag.Arg(1)
	}

	if err := run(src, dst, *compact); err != nil {
		fmt.Fprintf(os.Stderr, "copy: %v\n", err)
		os.Exit(1)
	}
}

func run(src, dst string, compact bool) error {
	env, err := pagedb.NewEnv(pagedb.Default)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Open(src, pagedb.ReadOnly, 0644); err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	flags := pagedb.CopyDefaults
	if compact {
		flags = pagedb.CopyCompact
	}

	// With no destination, stream the copy to stdout (for piping), as the
	// original tool does.
	if dst == "" {
		if err := env.CopyFD(os.Stdout.Fd(), flags); err != nil {
			return fmt.Errorf("copy to stdout: %w", err)
		}
		return nil
	}
	if err := env.Copy(dst, flags); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return nil
}
