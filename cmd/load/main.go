// Command load reads the text format produced by dump and replays it into
// a database environment.
//
// Grounded on the original project's mdb_load.c: same flag letters, same
// header parsing, same append-mode contract (caller guarantees sorted,
// non-overlapping input).
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pagedb/pagedb"
)

func main() {
	var (
		appendMode = flag.Bool("a", false, "input is sorted; use Append")
		inFile     = flag.String("f", "", "read from FILE instead of stdin")
		noOverwrite = flag.Bool("N", false, "fail instead of overwriting existing keys")
		sub        = flag.String("s", "", "load into the named sub-database")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: load [-a] [-f FILE] [-N] [-s NAME] PATH\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *appendMode, *inFile, *noOverwrite, *sub); err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, appendMode bool, inFile string, noOverwrite bool, sub string) error {
	env, err := pagedb.NewEnv(pagedb.Default)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Open(path, pagedb.NoSubdir, 0644); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	r := os.Stdin
	if inFile != "" {
		f, err := os.Open(inFile)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	return loadStream(env, bufio.NewReader(r), appendMode, noOverwrite, sub)
}

func loadStream(env *pagedb.Env, r *bufio.Reader, appendMode, noOverwrite bool, sub string) error {
	name := sub
	format := "bytevalue"
	dbFlags := pagedb.Create

	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if line == "HEADER=END" {
			break
		}
		switch {
		case strings.HasPrefix(line, "format="):
			format = strings.TrimPrefix(line, "format=")
		case strings.HasPrefix(line, "database="):
			if sub == "" {
				name = strings.TrimPrefix(line, "database=")
			}
		case line == "dupsort=1":
			dbFlags |= pagedb.DupSort
		case line == "integerkey=1":
			dbFlags |= pagedb.IntegerKey
		case line == "dupfixed=1":
			dbFlags |= pagedb.DupFixed
		case line == "integerdup=1":
			dbFlags |= pagedb.IntegerDup
		case line == "reversekey=1":
			dbFlags |= pagedb.ReverseKey
		case line == "reversedup=1":
			dbFlags |= pagedb.ReverseDup
		}
		if err != nil {
			break
		}
	}

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		return fmt.Errorf("begin txn: %w", err)
	}

	dbi, err := txn.OpenDBISimple(name, dbFlags)
	if err != nil {
		txn.Abort()
		return fmt.Errorf("open database %q: %w", name, err)
	}

	putFlags := pagedb.Upsert
	if appendMode {
		putFlags = pagedb.Append
	}
	if noOverwrite {
		putFlags |= pagedb.NoOverwrite
	}

	printable := format == "print"
	for {
		key, err := readDataLine(r, printable)
		if err == io.EOF {
			break
		}
		if err != nil {
			txn.Abort()
			return err
		}
		if string(key) == "DATA=END" {
			break
		}
		val, err := readDataLine(r, printable)
		if err != nil {
			txn.Abort()
			return err
		}
		if err := txn.Put(dbi, key, val, putFlags); err != nil {
			txn.Abort()
			return fmt.Errorf("put: %w", err)
		}
	}

	_, err = txn.Commit()
	return err
}

// readDataLine reads one dump data line (leading space stripped) and
// decodes it according to the dump format in effect.
func readDataLine(r *bufio.Reader, printable bool) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, io.EOF
	}
	line = strings.TrimRight(line, "\n")
	if len(line) == 0 {
		return nil, fmt.Errorf("unexpected blank line")
	}
	body := strings.TrimPrefix(line, " ")
	if body == "DATA=END" {
		return []byte(body), nil
	}
	if !printable {
		return hex.DecodeString(body)
	}
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && body[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		if body[i] == '\\' && i+2 < len(body) {
			b, decErr := hex.DecodeString(body[i+1 : i+3])
			if decErr == nil {
				out = append(out, b[0])
				i += 2
				continue
			}
		}
		out = append(out, body[i])
	}
	return out, nil
}
