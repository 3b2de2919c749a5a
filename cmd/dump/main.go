// Command dump writes the contents of a database environment in the
// portable text format understood by the load command.
//
// Grounded on the original project's mdb_dump.c: same flag letters, same
// header/footer framing, same printable-escape convention under -p.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/pagedb/pagedb"
)

func main() {
	var (
		all      = flag.Bool("a", false, "dump all named sub-databases")
		sub      = flag.String("s", "", "dump only the named sub-database")
		outFile  = flag.String("f", "", "write to FILE instead of stdout")
		noHeader = flag.Bool("n", false, "omit the header/footer, data lines only")
		printable = flag.Bool("p", false, "use printable characters where possible")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: dump [-a|-s SUB] [-f FILE] [-n] [-p] PATH\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := run(path, *all, *sub, *outFile, *noHeader, *printable); err != nil {
		fmt.Fprintf(os.Stderr, "dump: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, all bool, sub, outFile string, noHeader, printable bool) error {
	env, err := pagedb.NewEnv(pagedb.Default)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Open(path, pagedb.ReadOnly|pagedb.NoSubdir, 0644); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	txn, err := env.BeginTxn(nil, pagedb.TxnReadOnly)
	if err != nil {
		return fmt.Errorf("begin txn: %w", err)
	}
	defer txn.Abort()

	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	names := []string{""}
	if sub != "" {
		names = []string{sub}
	} else if all {
		extra, err := discoverSubDBs(txn)
		if err != nil {
			return err
		}
		names = append(names, extra...)
	}

	for _, name := range names {
		if err := dumpOne(txn, bw, name, noHeader, printable); err != nil {
			return err
		}
	}
	return nil
}

// discoverSubDBs finds named sub-databases by attempting to open every key
// in the main tree as a database handle. Keys that aren't sub-database
// references fail to open and are skipped, mirroring the original tool's
// best-effort discovery when walking MDB_DUPSORT-free root entries.
func discoverSubDBs(txn *pagedb.Txn) ([]string, error) {
	cur, err := txn.OpenCursor(pagedb.MainDBI)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var names []string
	key, _, err := cur.Get(nil, nil, pagedb.First)
	for err == nil {
		name := string(key)
		if dbi, openErr := txn.OpenDBISimple(name, 0); openErr == nil {
			names = append(names, name)
			txn.Env().CloseDBI(dbi)
		}
		key, _, err = cur.Get(nil, nil, pagedb.Next)
	}
	return names, nil
}

func dumpOne(txn *pagedb.Txn, bw *bufio.Writer, name string, noHeader, printable bool) error {
	dbi, err := txn.OpenDBISimple(name, 0)
	if err != nil {
		return fmt.Errorf("open database %q: %w", name, err)
	}
	flags, err := txn.DBIFlags(dbi)
	if err != nil {
		return err
	}

	if !noHeader {
		fmt.Fprintln(bw, "VERSION=3")
		if printable {
			fmt.Fprintln(bw, "format=print")
		} else {
			fmt.Fprintln(bw, "format=bytevalue")
		}
		if name != "" {
			fmt.Fprintf(bw, "database=%s\n", name)
		}
		fmt.Fprintln(bw, "type=btree")
		if flags&pagedb.DupSort != 0 {
			fmt.Fprintln(bw, "dupsort=1")
		}
		if flags&pagedb.IntegerKey != 0 {
			fmt.Fprintln(bw, "integerkey=1")
		}
		if flags&pagedb.DupFixed != 0 {
			fmt.Fprintln(bw, "dupfixed=1")
		}
		if flags&pagedb.IntegerDup != 0 {
			fmt.Fprintln(bw, "integerdup=1")
		}
		if flags&pagedb.ReverseKey != 0 {
			fmt.Fprintln(bw, "reversekey=1")
		}
		if flags&pagedb.ReverseDup != 0 {
			fmt.Fprintln(bw, "reversedup=1")
		}
		fmt.Fprintf(bw, "db_pagesize=%d\n", mustPageSize(txn))
		fmt.Fprintln(bw, "HEADER=END")
	}

	cur, err := txn.OpenCursor(dbi)
	if err != nil {
		return err
	}
	defer cur.Close()

	key, val, err := cur.Get(nil, nil, pagedb.First)
	for err == nil {
		writeLine(bw, key, printable)
		writeLine(bw, val, printable)
		key, val, err = cur.Get(nil, nil, pagedb.Next)
	}
	if !pagedb.IsNotFound(err) && err != nil {
		return err
	}

	if !noHeader {
		fmt.Fprintln(bw, "DATA=END")
	}
	return nil
}

func mustPageSize(txn *pagedb.Txn) uint32 {
	st, err := txn.Stat(pagedb.MainDBI)
	if err != nil {
		return 0
	}
	return st.PageSize
}

// writeLine writes one data line in the dump format: a leading space, the
// encoded bytes, then a newline. Under -p, printable ASCII passes through
// and everything else becomes a \xx hex escape; otherwise the whole value
// is emitted as plain hex pairs.
func writeLine(bw *bufio.Writer, b []byte, printable bool) {
	bw.WriteByte(' ')
	if printable {
		for _, c := range b {
			switch {
			case c == '\\':
				bw.WriteString(`\\`)
			case c >= 0x20 && c < 0x7f:
				bw.WriteByte(c)
			default:
				fmt.Fprintf(bw, `\%02x`, c)
			}
		}
	} else {
		bw.WriteString(hex.EncodeToString(b))
	}
	bw.WriteByte('\n')
}
