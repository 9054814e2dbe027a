package storage

import "os"

// PageStore reads and writes fixed-size pages from a single backing file
// by page number. It performs no caching and no locking of its own. Its
// only caller is HeapFile: page reads and flushes driven by the
// BufferPool, and the direct write that extends the file when a new page
// is appended (made before any lock on that page is taken).
type PageStore struct {
	path string
}

// NewPageStore opens (creating if necessary) the backing file at path.
func NewPageStore(path string) (*PageStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, newError(IOError, "opening backing file %s: %v", path, err)
	}
	f.Close()
	return &PageStore{path: path}, nil
}

// NumPages returns the current number of whole pages in the backing file.
func (s *PageStore) NumPages() (int, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, newError(IOError, "statting %s: %v", s.path, err)
	}
	return int(fi.Size() / int64(PageSize)), nil
}

// Read reads exactly PageSize bytes starting at pageNo*PageSize.
func (s *PageStore) Read(pageNo int) ([]byte, error) {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, newError(IOError, "opening %s: %v", s.path, err)
	}
	defer f.Close()

	buf := make([]byte, PageSize)
	n, err := f.ReadAt(buf, int64(pageNo)*int64(PageSize))
	if err != nil {
		return nil, newError(IOError, "reading page %d of %s: %v", pageNo, s.path, err)
	}
	if n != PageSize {
		return nil, newError(IOError, "short read of page %d of %s: got %d bytes", pageNo, s.path, n)
	}
	return buf, nil
}

// Write persists exactly PageSize bytes of buf at pageNo*PageSize,
// extending the file if pageNo is beyond its current length.
func (s *PageStore) Write(pageNo int, buf []byte) error {
	if len(buf) != PageSize {
		return newError(IOError, "write of page %d: expected %d bytes, got %d", pageNo, PageSize, len(buf))
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return newError(IOError, "opening %s: %v", s.path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(buf, int64(pageNo)*int64(PageSize)); err != nil {
		return newError(IOError, "writing page %d of %s: %v", pageNo, s.path, err)
	}
	return nil
}
