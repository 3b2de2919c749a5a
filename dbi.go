package pagedb

// DBI is a database handle (index into environment's database array).
type DBI uint32

// Drop deletes all data in a database, or deletes the database entirely.
// If del is true, the database is deleted; otherwise it is emptied.
func (txn *Txn) Drop(dbi DBI, del bool) error {
	if !txn.valid() {
		return NewError(ErrBadTxn)
	}

	if txn.IsReadOnly() {
		return NewError(ErrPermissionDenied)
	}

	if dbi < CoreDBs {
		return NewError(ErrInvalid) // Can't drop core DBs
	}

	if int(dbi) >= len(txn.trees) {
		return NewError(ErrBadDBI)
	}

	if root := txn.trees[dbi].Root; root != invalidPgno {
		if err := txn.freeTreePages(root, int(txn.trees[dbi].Height)); err != nil {
			return err
		}
	}

	txn.trees[dbi].reset()

	// Mark the tree as dirty so it gets persisted
	if txn.dbiDirty == nil {
		txn.dbiDirty = make([]bool, len(txn.trees))
	}
	if int(dbi) < len(txn.dbiDirty) {
		txn.dbiDirty[dbi] = true
	}

	if del {
		// Remove from environment's DBI list
		txn.env.dbisMu.Lock()
		txn.env.dbis[dbi] = nil
		txn.env.dbisMu.Unlock()
	}

	return nil
}

// freeTreePages walks every page reachable from root (branch pages down to
// leaves, following big-data overflow runs and promoted DUPSORT sub-trees
// along the way) and queues each one onto txn.freePages, the same slice
// every split/merge/delete path in cursor_modify.go appends to. height is
// only used as a recursion-depth hint for callers that track it; the walk
// itself is driven by each page's own branch/leaf flag, so a mismatched or
// stale height never causes pages to be skipped or double-visited.
func (txn *Txn) freeTreePages(root pgno, height int) error {
	p, err := txn.getPage(root)
	if err != nil {
		return err
	}

	switch {
	case p.isBranch():
		for i := 0; i < p.numEntries(); i++ {
			n := nodeFromPage(p, i)
			if n == nil {
				continue
			}
			if err := txn.freeTreePages(n.childPgno(), height-1); err != nil {
				return err
			}
		}
	case p.isLeaf():
		for i := 0; i < p.numEntries(); i++ {
			n := nodeFromPage(p, i)
			if n == nil {
				continue
			}
			switch {
			case n.isBig():
				if ov := n.overflowPgno(); ov != invalidPgno {
					if err := txn.freeOverflowRun(ov); err != nil {
						return err
					}
				}
			case n.isTree():
				// A DUPSORT key whose values outgrew a sub-page was promoted
				// to its own embedded sub-tree (the "N_TREE" node above); its
				// data is a tree record, not a page number, and its pages
				// live entirely under its own Root.
				subRoot, subHeight, ok := decodeEmbeddedTreeRoot(n.nodeData())
				if ok && subRoot != invalidPgno {
					if err := txn.freeTreePages(subRoot, subHeight); err != nil {
						return err
					}
				}
			}
		}
	}

	txn.freePages = append(txn.freePages, root)
	return nil
}

// freeOverflowRun queues every page in a contiguous big-data run, starting
// at the page that carries the run's own length in its header.
func (txn *Txn) freeOverflowRun(start pgno) error {
	p, err := txn.getPage(start)
	if err != nil {
		return err
	}
	count := p.overflowPages()
	if count == 0 {
		count = 1
	}
	for i := uint32(0); i < count; i++ {
		txn.freePages = append(txn.freePages, start+pgno(i))
	}
	return nil
}

// decodeEmbeddedTreeRoot reads the Root and Height fields out of a raw
// embedded tree record (the same 48-byte layout meta.go's tree struct
// mirrors, matching cursor.go's initDupSubTree decode of the identical
// bytes for live iteration).
func decodeEmbeddedTreeRoot(data []byte) (root pgno, height int, ok bool) {
	if len(data) < treeSize {
		return 0, 0, false
	}
	root = pgno(
		uint32(data[8]) | uint32(data[9])<<8 |
			uint32(data[10])<<16 | uint32(data[11])<<24,
	)
	height = int(uint16(data[2]) | uint16(data[3])<<8)
	return root, height, true
}

// DBIFlags returns the flags for a database.
func (txn *Txn) DBIFlags(dbi DBI) (uint, error) {
	if !txn.valid() {
		return 0, NewError(ErrBadTxn)
	}

	if int(dbi) >= len(txn.trees) {
		return 0, NewError(ErrBadDBI)
	}

	return uint(txn.trees[dbi].Flags), nil
}

// Sequence gets or updates the sequence number for a database.
// If increment > 0, adds it to the sequence and returns the value before the increment.
// If increment == 0, returns the current value without changing it.
func (txn *Txn) Sequence(dbi DBI, increment uint64) (uint64, error) {
	if !txn.valid() {
		return 0, NewError(ErrBadTxn)
	}

	if int(dbi) >= len(txn.trees) {
		return 0, NewError(ErrBadDBI)
	}

	if increment > 0 && txn.IsReadOnly() {
		return 0, NewError(ErrPermissionDenied)
	}

	t := &txn.trees[dbi]
	result := t.Sequence

	if increment > 0 {
		t.Sequence += increment
	}

	return result, nil
}

// SetCompare sets a custom key comparison function for a database.
// Must be called before any data operations on the database.
func (e *Env) SetCompare(dbi DBI, cmp func(a, b []byte) int) error {
	if !e.valid() {
		return NewError(ErrInvalid)
	}

	e.dbisMu.Lock()
	defer e.dbisMu.Unlock()

	if int(dbi) >= len(e.dbis) {
		return NewError(ErrBadDBI)
	}

	if e.dbis[dbi] == nil {
		e.dbis[dbi] = &dbiInfo{}
	}
	e.dbis[dbi].cmp = cmp

	return nil
}

// SetDupCompare sets a custom data comparison function for DUPSORT databases.
// Must be called before any data operations on the database.
func (e *Env) SetDupCompare(dbi DBI, cmp func(a, b []byte) int) error {
	if !e.valid() {
		return NewError(ErrInvalid)
	}

	e.dbisMu.Lock()
	defer e.dbisMu.Unlock()

	if int(dbi) >= len(e.dbis) {
		return NewError(ErrBadDBI)
	}

	if e.dbis[dbi] == nil {
		e.dbis[dbi] = &dbiInfo{}
	}
	e.dbis[dbi].dcmp = cmp

	return nil
}

// DBIStat is an alias for the Stat method for compatibility.
func (txn *Txn) DBIStat(dbi DBI) (*Stat, error) {
	return txn.Stat(dbi)
}
