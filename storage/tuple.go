package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// DBType is the type of a tuple field.
type DBType int

const (
	IntType DBType = iota
	StringType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType names and types one field of a TupleDesc.
type FieldType struct {
	Fname string
	Ftype DBType
}

// TupleDesc is the fixed schema of every tuple stored in one HeapFile:
// an ordered list of fields, each a fixed-width int64 or a
// zero-padded StringLength-byte string.
type TupleDesc struct {
	Fields []FieldType
}

// bytesPerTuple is the fixed on-disk width of a tuple of this
// TupleDesc: 8 bytes per int field, StringLength bytes per string field.
func (d *TupleDesc) bytesPerTuple() int {
	n := 0
	for _, f := range d.Fields {
		switch f.Ftype {
		case IntType:
			n += 8
		case StringType:
			n += StringLength
		}
	}
	return n
}

func (d *TupleDesc) equals(other *TupleDesc) bool {
	if len(d.Fields) != len(other.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// DBValue is the interface implemented by every field value a Tuple can
// carry. Query-level predicate evaluation is a query-operator concern
// and lives outside this package; DBValue here exists only so Tuple.Fields
// can hold either field kind uniformly.
type DBValue interface {
	fieldType() DBType
}

// IntField is an int64-valued tuple field.
type IntField struct {
	Value int64
}

func (IntField) fieldType() DBType { return IntType }

// StringField is a string-valued tuple field, stored on disk padded or
// truncated to StringLength bytes.
type StringField struct {
	Value string
}

func (StringField) fieldType() DBType { return StringType }

// RecordID identifies where a Tuple lives within its HeapFile: the page
// number and slot index it was last read from, or inserted at. It is set
// by HeapFile.InsertTuple and by the scan iterator, and consumed by
// HeapFile.DeleteTuple.
type RecordID struct {
	PageNo int
	SlotNo int
}

// Tuple is a single record: its schema plus one value per field, and the
// RecordID it was read from (zero value before the first insert).
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    RecordID
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	padded := make([]byte, StringLength)
	copy(padded, []byte(f.Value))
	return binary.Write(b, binary.LittleEndian, padded)
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.LittleEndian, f.Value)
}

// writeTo serializes the tuple's fields, in schema order, into b.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type: %T", field)
		}
	}
	return nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	raw := make([]byte, StringLength)
	if err := binary.Read(b, binary.LittleEndian, raw); err != nil {
		return StringField{}, err
	}
	return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int64
	if err := binary.Read(b, binary.LittleEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

// readTupleFrom deserializes one tuple matching desc from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc}
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case StringType:
			f, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		default:
			f, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		}
	}
	return t, nil
}

// HeaderString renders the field names for the debug shell.
func (d *TupleDesc) HeaderString() string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Fname
	}
	return strings.Join(names, "\t")
}

// String renders a tuple's field values for the debug shell.
func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			parts[i] = fmt.Sprintf("%d", v.Value)
		case StringField:
			parts[i] = v.Value
		}
	}
	return strings.Join(parts, "\t")
}
