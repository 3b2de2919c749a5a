// Command stat reports environment, freelist, reader table, and per-
// database statistics, in the spirit of the original project's
// mdb_stat.c.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pagedb/pagedb"
)

func main() {
	var (
		envInfo    = flag.Bool("e", false, "show environment info")
		freelist   = flag.Bool("f", false, "show freelist info")
		readers    = flag.Bool("r", false, "show reader table")
		sweep      = flag.Bool("rr", false, "show reader table and sweep stale readers")
		sub        = flag.String("s", "", "show stats for the named sub-database")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: stat [-e] [-f] [-r|-rr] [-s NAME] PATH\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *envInfo, *freelist, *readers || *sweep, *sweep, *sub); err != nil {
		fmt.Fprintf(os.Stderr, "stat: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, envInfo, freelist, readers, sweep bool, sub string) error {
	env, err := pagedb.NewEnv(pagedb.Default)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Open(path, pagedb.ReadOnly, 0644); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	txn, err := env.BeginTxn(nil, pagedb.TxnReadOnly)
	if err != nil {
		return fmt.Errorf("begin txn: %w", err)
	}
	defer txn.Abort()

	dbi, err := txn.OpenDBISimple(sub, 0)
	if err != nil {
		return fmt.Errorf("open database %q: %w", sub, err)
	}
	st, err := txn.Stat(dbi)
	if err != nil {
		return err
	}
	fmt.Printf("Page size: %d\n", st.PageSize)
	fmt.Printf("Tree depth: %d\n", st.Depth)
	fmt.Printf("Branch pages: %d\n", st.BranchPages)
	fmt.Printf("Leaf pages: %d\n", st.LeafPages)
	fmt.Printf("Overflow pages: %d\n", st.OverflowPages)
	fmt.Printf("Entries: %d\n", st.Entries)

	if envInfo {
		info, err := env.Info(txn)
		if err != nil {
			return err
		}
		fmt.Printf("Map size: %d\n", info.MapSize)
		fmt.Printf("Map address: (mmap'd)\n")
		fmt.Printf("Last page number: %d\n", info.LastPgNo)
		fmt.Printf("Last transaction ID: %d\n", info.LastTxnID)
		fmt.Printf("Max readers: %d\n", info.MaxReaders)
		fmt.Printf("Number of readers used: %d\n", info.NumReaders)
	}

	if freelist {
		fstat, ferr := txn.Stat(pagedb.DBI(pagedb.FreeDBI))
		if ferr == nil {
			fmt.Printf("Freelist records: %d\n", fstat.Entries)
		}
	}

	if readers {
		if sweep {
			n, err := env.ReaderCheck()
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d stale readers\n", n)
		}
		fmt.Println("Reader Table Status")
		err := env.ReaderList(func(info pagedb.ReaderInfo) error {
			fmt.Printf("    %10d %-20d %d\n", info.Slot, info.PID, info.TxnID)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if buf := env.SpillBuffer(); buf != nil {
		sstat := buf.Stats()
		fmt.Printf("Spill segments: %d\n", sstat.Segments)
		fmt.Printf("Spill slots allocated: %d / %d\n", sstat.AllocatedSlots, sstat.TotalCapacity)
		fmt.Printf("Spill bytes resident: %d\n", sstat.BytesResident)
	}

	return nil
}
