package storage

// PageId structurally identifies one page of one table. It is a plain
// comparable struct, so it can be used directly as a map key — no
// separate hash-key type is needed the way the access method used to
// need one.
type PageId struct {
	TableID    string
	PageNumber int
}

// Offset returns the byte offset of this page within its backing file.
func (id PageId) Offset() int64 {
	return int64(id.PageNumber) * int64(PageSize)
}
