// Command txshell is a small interactive console over the storage
// engine: open/scan/insert/stat/load/commit/abort, one line at a time,
// with no SQL parsing layer in between. It has no commands for raw page
// get or lock release.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"txcore/stats"
	"txcore/storage"
)

func main() {
	poolSize := flag.Int("pool-pages", 64, "buffer pool capacity, in pages")
	flag.Parse()

	bp := storage.NewBufferPool(*poolSize)
	sh := &shell{
		bp:       bp,
		files:    make(map[string]*storage.HeapFile),
		registry: stats.NewRegistry(bp, stats.DefaultIOCostPerPage),
		tid:      storage.NewTransactionID(),
	}
	if err := bp.BeginTransaction(sh.tid); err != nil {
		log.Fatalf("txshell: %v", err)
	}

	rl, err := readline.New("txshell> ")
	if err != nil {
		log.Fatalf("txshell: %v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("txshell: %v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := sh.dispatch(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// shell holds the single long-lived transaction the console commands
// operate under, plus every table it has opened.
type shell struct {
	bp       *storage.BufferPool
	files    map[string]*storage.HeapFile
	registry *stats.Registry
	tid      storage.TransactionID
}

func (s *shell) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "open":
		return s.cmdOpen(args)
	case "scan":
		return s.cmdScan(args)
	case "insert":
		return s.cmdInsert(args)
	case "stat":
		return s.cmdStat(args)
	case "load":
		return s.cmdLoad(args)
	case "commit":
		return s.bp.TransactionComplete(s.tid, true)
	case "abort":
		err := s.bp.TransactionComplete(s.tid, false)
		s.tid = storage.NewTransactionID()
		s.bp.BeginTransaction(s.tid)
		return err
	default:
		return fmt.Errorf("unknown command %q (try: open, scan, insert, stat, load, commit, abort)", cmd)
	}
}

// cmdOpen: open <table> <path> <field:type>...
func (s *shell) cmdOpen(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: open <table> <path> <field:type>...")
	}
	table, path := args[0], args[1]
	desc := storage.TupleDesc{}
	for _, spec := range args[2:] {
		parts := strings.SplitN(spec, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("bad field spec %q, want name:type", spec)
		}
		var ft storage.DBType
		switch parts[1] {
		case "int":
			ft = storage.IntType
		case "string":
			ft = storage.StringType
		default:
			return fmt.Errorf("unknown field type %q", parts[1])
		}
		desc.Fields = append(desc.Fields, storage.FieldType{Fname: parts[0], Ftype: ft})
	}
	hf, err := storage.NewHeapFile(table, path, desc, s.bp)
	if err != nil {
		return err
	}
	s.files[table] = hf
	fmt.Printf("opened %s (%d pages)\n", table, hf.NumPages())
	return nil
}

func (s *shell) table(name string) (*storage.HeapFile, error) {
	hf, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("table %q not open; use: open %s <path> <fields...>", name, name)
	}
	return hf, nil
}

// cmdScan: scan <table>
func (s *shell) cmdScan(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: scan <table>")
	}
	hf, err := s.table(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hf.Descriptor().HeaderString())
	it := hf.Iterator(s.tid)
	for {
		t, err := it.Next()
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		fmt.Println(t.String())
	}
}

// cmdInsert: insert <table> <value>...
func (s *shell) cmdInsert(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: insert <table> <value>...")
	}
	hf, err := s.table(args[0])
	if err != nil {
		return err
	}
	desc := hf.Descriptor()
	values := args[1:]
	if len(values) != len(desc.Fields) {
		return fmt.Errorf("table %s takes %d fields, got %d", args[0], len(desc.Fields), len(values))
	}
	fieldVals := make([]storage.DBValue, len(values))
	for i, v := range values {
		switch desc.Fields[i].Ftype {
		case storage.IntType:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("field %s: %v", desc.Fields[i].Fname, err)
			}
			fieldVals[i] = storage.IntField{Value: n}
		case storage.StringType:
			fieldVals[i] = storage.StringField{Value: v}
		}
	}
	t := &storage.Tuple{Desc: *desc, Fields: fieldVals}
	return s.bp.InsertTuple(s.tid, args[0], t)
}

// cmdStat: stat <table>
func (s *shell) cmdStat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stat <table>")
	}
	hf, err := s.table(args[0])
	if err != nil {
		return err
	}
	st, err := s.registry.ComputeIfAbsent(args[0], hf)
	if err != nil {
		return err
	}
	fmt.Printf("scanCost=%.1f cardinality(sel=1.0)=%d\n", st.EstimateScanCost(), st.EstimateTableCardinality(1.0))
	return nil
}

// cmdLoad: load <table> <csvPath> [hasHeader]
func (s *shell) cmdLoad(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: load <table> <csvPath> [hasHeader]")
	}
	hf, err := s.table(args[0])
	if err != nil {
		return err
	}
	hasHeader := len(args) > 2 && args[2] == "true"
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	return hf.LoadFromCSV(f, hasHeader, ",", false)
}
