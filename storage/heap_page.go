package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/bits"
)

// HeapPage is the Page implementation for HeapFile. Its wire format is a
// 4-byte slot count, followed by a ceil(slots/8)-byte occupancy bitmap
// (bit i set iff slot i holds a tuple), followed by `slots` fixed-size
// tuple slots. This differs from a simple used-count header: the bitmap
// lets a slot be identified as free or occupied without scanning every
// tuple for a nil sentinel.
type HeapPage struct {
	desc     TupleDesc
	pageNo   int
	numSlots int
	occupied []bool
	tuples   []*Tuple
	dirty    bool
	dirtyBy  TransactionID
	file     *HeapFile
}

// bitmapBytes is the number of bytes needed to hold one bit per slot.
func bitmapBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// numSlotsForPage computes how many fixed-size tuple slots of the given
// TupleDesc fit in one page alongside the 4-byte slot count and its
// occupancy bitmap. The bitmap's own size depends on the slot count, so
// this converges by fixed-point iteration (at most two rounds in
// practice, since bitmapBytes grows far slower than bytesPerTuple).
func numSlotsForPage(desc *TupleDesc) int {
	bytesPerTuple := desc.bytesPerTuple()
	if bytesPerTuple == 0 {
		return 0
	}
	slots := (PageSize - 4) / bytesPerTuple
	for {
		header := 4 + bitmapBytes(slots)
		fit := (PageSize - header) / bytesPerTuple
		if fit == slots {
			return slots
		}
		slots = fit
	}
}

// newHeapPage constructs an empty page with pageNo's slot capacity
// determined by desc.
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) *HeapPage {
	n := numSlotsForPage(desc)
	return &HeapPage{
		desc:     *desc,
		pageNo:   pageNo,
		numSlots: n,
		occupied: make([]bool, n),
		tuples:   make([]*Tuple, n),
		file:     f,
	}
}

func (h *HeapPage) ID() PageId {
	return PageId{TableID: h.file.tableID, PageNumber: h.pageNo}
}

func (h *HeapPage) IsDirty() bool { return h.dirty }

func (h *HeapPage) SetDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyBy = tid
	}
}

// numEmptySlots returns how many slots are currently free.
func (h *HeapPage) numEmptySlots() int {
	free := 0
	for _, occ := range h.occupied {
		if !occ {
			free++
		}
	}
	return free
}

// ErrPageFull is returned by insertTuple when every slot is occupied.
var ErrPageFull = StorageError{Code: PreconditionViolation, Msg: "page is full"}

// insertTuple places t into the first free slot, sets t.Rid, and
// returns it. Returns ErrPageFull if no slot is free.
func (h *HeapPage) insertTuple(t *Tuple) (RecordID, error) {
	for i := 0; i < h.numSlots; i++ {
		if !h.occupied[i] {
			h.occupied[i] = true
			h.tuples[i] = t
			t.Rid = RecordID{PageNo: h.pageNo, SlotNo: i}
			return t.Rid, nil
		}
	}
	return RecordID{}, ErrPageFull
}

// deleteTuple removes the tuple at rid.SlotNo, or returns a
// PreconditionViolation if the slot is out of range or already empty.
func (h *HeapPage) deleteTuple(rid RecordID) error {
	if rid.SlotNo < 0 || rid.SlotNo >= h.numSlots {
		return StorageError{Code: PreconditionViolation, Msg: "slot does not exist on delete"}
	}
	if !h.occupied[rid.SlotNo] {
		return StorageError{Code: PreconditionViolation, Msg: "tuple already deleted"}
	}
	h.occupied[rid.SlotNo] = false
	h.tuples[rid.SlotNo] = nil
	return nil
}

// toBuffer serializes the page: slot count, occupancy bitmap, then each
// slot's tuple bytes (zero-filled for empty slots, so every slot is a
// fixed offset on disk), padded to PageSize.
func (h *HeapPage) toBuffer() (*bytes.Buffer, error) {
	b := new(bytes.Buffer)
	if err := binary.Write(b, binary.LittleEndian, int32(h.numSlots)); err != nil {
		return nil, err
	}

	bitmap := make([]byte, bitmapBytes(h.numSlots))
	for i, occ := range h.occupied {
		if occ {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	if _, err := b.Write(bitmap); err != nil {
		return nil, err
	}

	tupleBytes := h.desc.bytesPerTuple()
	for i := 0; i < h.numSlots; i++ {
		if h.occupied[i] {
			if err := h.tuples[i].writeTo(b); err != nil {
				return nil, err
			}
		} else {
			b.Write(make([]byte, tupleBytes))
		}
	}

	if b.Len() > PageSize {
		return nil, StorageError{Code: PreconditionViolation, Msg: "serialized page exceeds page size"}
	}
	b.Write(make([]byte, PageSize-b.Len()))
	return b, nil
}

// initFromBuffer populates h from a buffer of exactly PageSize bytes
// read from disk.
func (h *HeapPage) initFromBuffer(buf *bytes.Buffer) error {
	var numSlots int32
	if err := binary.Read(buf, binary.LittleEndian, &numSlots); err != nil {
		return err
	}

	bitmap := make([]byte, bitmapBytes(int(numSlots)))
	if _, err := io.ReadFull(buf, bitmap); err != nil {
		return err
	}
	occupied := make([]bool, numSlots)
	for i := range occupied {
		occupied[i] = bitmap[i/8]&(1<<uint(i%8)) != 0
	}

	tuples := make([]*Tuple, numSlots)
	for i := 0; i < int(numSlots); i++ {
		t, err := readTupleFrom(buf, &h.desc)
		if err != nil {
			return err
		}
		if occupied[i] {
			t.Rid = RecordID{PageNo: h.pageNo, SlotNo: i}
			tuples[i] = t
		}
	}

	h.numSlots = int(numSlots)
	h.occupied = occupied
	h.tuples = tuples
	h.dirty = false
	return nil
}

// tupleIter returns a closure yielding each occupied tuple in slot
// order, then nil.
func (h *HeapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < h.numSlots {
			t := h.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}

// occupiedCount returns the number of occupied slots by popcounting the
// serialized bitmap representation.
func (h *HeapPage) occupiedCount() int {
	bitmap := make([]byte, bitmapBytes(h.numSlots))
	for i, occ := range h.occupied {
		if occ {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	n := 0
	for _, b := range bitmap {
		n += bits.OnesCount8(b)
	}
	return n
}
