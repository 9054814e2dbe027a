package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is a densely packed, unordered array of pages: the page-array
// access method. All reads and writes of existing pages go through the
// BufferPool; HeapFile only talks to PageStore directly when appending a
// brand-new page (see InsertTuple).
type HeapFile struct {
	tableID       string
	desc          TupleDesc
	store         *PageStore
	pool          *BufferPool
	mu            sync.Mutex
	numPages      int
	lastEmptyPage int
}

// NewHeapFile opens (creating if necessary) path as the backing file
// for a heap file of the given schema, registered with bp under tableID.
func NewHeapFile(tableID string, path string, desc TupleDesc, bp *BufferPool) (*HeapFile, error) {
	store, err := NewPageStore(path)
	if err != nil {
		return nil, err
	}
	n, err := store.NumPages()
	if err != nil {
		return nil, err
	}
	hf := &HeapFile{
		tableID:       tableID,
		desc:          desc,
		store:         store,
		pool:          bp,
		numPages:      n,
		lastEmptyPage: -1,
	}
	bp.registerFile(hf)
	return hf, nil
}

// TableID implements DBFile.
func (f *HeapFile) TableID() string { return f.tableID }

// Descriptor returns the file's fixed schema.
func (f *HeapFile) Descriptor() *TupleDesc { return &f.desc }

// NumPages returns the current page count.
func (f *HeapFile) NumPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPages
}

// ReadPage implements DBFile: used by the BufferPool on a cache miss.
func (f *HeapFile) ReadPage(pageNo int) (Page, error) {
	buf, err := f.store.Read(pageNo)
	if err != nil {
		return nil, err
	}
	p := newHeapPage(&f.desc, pageNo, f)
	if err := p.initFromBuffer(bytes.NewBuffer(buf)); err != nil {
		return nil, newError(IOError, "decoding page %d of %s: %v", pageNo, f.tableID, err)
	}
	return p, nil
}

// FlushPage implements DBFile: writes p back to its page number.
func (f *HeapFile) FlushPage(p Page) error {
	hp, ok := p.(*HeapPage)
	if !ok {
		return StorageError{Code: PreconditionViolation, Msg: "flushPage given a non-heap page"}
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	return f.store.Write(hp.pageNo, buf.Bytes())
}

// InsertTuple scans pages from the lastEmptyPage hint (page 0 when no
// hint is set) up to NumPages()-1 for one with a free slot, acquiring
// each EXCLUSIVE via the pool. If none has room, it allocates
// a fresh page at index NumPages(): the page is zero-filled and written
// directly through PageStore to extend the file, then immediately
// re-acquired through the BufferPool so it participates in the same
// lock/dirty discipline as every other page from that point on (the
// append-path design choice of option (a)). Returns the id of the page
// the tuple landed on, for the BufferPool to mark dirty.
func (f *HeapFile) InsertTuple(tid TransactionID, t *Tuple) (PageId, error) {
	f.mu.Lock()
	start := f.lastEmptyPage
	if start < 0 {
		start = 0
	}
	end := f.numPages
	f.mu.Unlock()

	for pno := start; pno < end; pno++ {
		pid := PageId{TableID: f.tableID, PageNumber: pno}
		page, err := f.pool.getPage(tid, f, pid, Exclusive)
		if err != nil {
			return PageId{}, err
		}
		hp := page.(*HeapPage)
		if hp.numEmptySlots() == 0 {
			continue
		}
		if _, err := hp.insertTuple(t); err != nil {
			if err == ErrPageFull {
				continue
			}
			return PageId{}, err
		}
		f.mu.Lock()
		f.lastEmptyPage = pno
		f.mu.Unlock()
		return pid, nil
	}

	f.mu.Lock()
	newPageNo := f.numPages
	blank := newHeapPage(&f.desc, newPageNo, f)
	buf, err := blank.toBuffer()
	if err != nil {
		f.mu.Unlock()
		return PageId{}, err
	}
	if err := f.store.Write(newPageNo, buf.Bytes()); err != nil {
		f.mu.Unlock()
		return PageId{}, err
	}
	f.numPages++
	f.lastEmptyPage = newPageNo
	f.mu.Unlock()

	pid := PageId{TableID: f.tableID, PageNumber: newPageNo}
	page, err := f.pool.getPage(tid, f, pid, Exclusive)
	if err != nil {
		return PageId{}, err
	}
	hp := page.(*HeapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return PageId{}, err
	}
	return pid, nil
}

// DeleteTuple removes t (identified by t.Rid) from its page, acquired
// EXCLUSIVE via the pool.
func (f *HeapFile) DeleteTuple(tid TransactionID, t *Tuple) (PageId, error) {
	if t.Rid.PageNo < 0 || t.Rid.PageNo >= f.NumPages() {
		return PageId{}, StorageError{Code: PreconditionViolation, Msg: "tuple references a page that does not exist"}
	}
	pid := PageId{TableID: f.tableID, PageNumber: t.Rid.PageNo}
	page, err := f.pool.getPage(tid, f, pid, Exclusive)
	if err != nil {
		return PageId{}, err
	}
	hp, ok := page.(*HeapPage)
	if !ok {
		return PageId{}, StorageError{Code: PreconditionViolation, Msg: "buffer pool returned non-heap page"}
	}
	if err := hp.deleteTuple(t.Rid); err != nil {
		return PageId{}, err
	}

	f.mu.Lock()
	if t.Rid.PageNo < f.lastEmptyPage || f.lastEmptyPage < 0 {
		f.lastEmptyPage = t.Rid.PageNo
	}
	f.mu.Unlock()

	return pid, nil
}

// HeapFileIterator is a lazy, restartable scan over a heap file's
// tuples in page-then-slot order. It does not release locks as it
// advances: locks accumulate for the transaction's duration, per strict
// 2PL.
type HeapFileIterator struct {
	tid    TransactionID
	file   *HeapFile
	pageNo int
	inner  func() (*Tuple, error)
}

// Iterator opens a fresh iterator positioned at page 0.
func (f *HeapFile) Iterator(tid TransactionID) *HeapFileIterator {
	return &HeapFileIterator{tid: tid, file: f}
}

// Rewind resets the iterator to page 0, re-scanning from the start
// (locks already held are not released).
func (it *HeapFileIterator) Rewind() {
	it.pageNo = 0
	it.inner = nil
}

// Next returns the next tuple, or (nil, nil) at end of file.
func (it *HeapFileIterator) Next() (*Tuple, error) {
	for {
		if it.inner == nil {
			if it.pageNo >= it.file.NumPages() {
				return nil, nil
			}
			pid := PageId{TableID: it.file.tableID, PageNumber: it.pageNo}
			page, err := it.file.pool.getPage(it.tid, it.file, pid, Shared)
			if err != nil {
				return nil, err
			}
			it.inner = page.(*HeapPage).tupleIter()
			it.pageNo++
		}
		t, err := it.inner()
		if err != nil {
			return nil, err
		}
		if t == nil {
			it.inner = nil
			continue
		}
		return t, nil
	}
}

// LoadFromCSV bulk-loads file into this heap file, one record per line,
// each insert committed as its own transaction so the pool never fills
// with a single giant transaction's dirty pages.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		lineNo++
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.desc.Fields) {
			return StorageError{Code: PreconditionViolation, Msg: fmt.Sprintf(
				"line %d (%s): expected %d fields, got %d", lineNo, line, len(f.desc.Fields), len(fields))}
		}

		values := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.desc.Fields[i].Ftype {
			case IntType:
				raw = strings.TrimSpace(raw)
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return StorageError{Code: PreconditionViolation, Msg: fmt.Sprintf(
						"line %d: cannot parse %q as int", lineNo, raw)}
				}
				values[i] = IntField{Value: int64(v)}
			case StringType:
				if len(raw) > StringLength {
					raw = raw[:StringLength]
				}
				values[i] = StringField{Value: raw}
			}
		}

		t := &Tuple{Desc: f.desc, Fields: values}
		tid := NewTransactionID()
		f.pool.BeginTransaction(tid)
		pid, err := f.InsertTuple(tid, t)
		if err != nil {
			f.pool.TransactionComplete(tid, false)
			return err
		}
		f.pool.markDirtyAndReassert(tid, pid)
		f.pool.TransactionComplete(tid, true)
	}
	return scanner.Err()
}
