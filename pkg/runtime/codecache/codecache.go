// Package codecache persists compiled-method records across process
// restarts: a pebble-backed key/value store keyed by a blake2b hash of
// a method's bytecode and constant-pool shape, storing everything one
// method compilation produced except the two things a fresh process can
// never reuse as-is — Entry, which Place always recomputes fresh for
// whatever executable-memory region this run happened to get, and Pool,
// whose entries are live boxed objects with no stable on-disk encoding
// of their own.
//
// Code itself still bakes in absolute addresses for every dispatch-
// bridge and method-stub call it emits (AlignedMovRegImm writes the
// compiling process's helper addresses straight into the instruction
// stream), so a record is only safe to reuse in a process whose
// dispatch bridge ended up at the same address. Rather than chase that
// relocation problem, every stored record is stamped with the
// DispatchAddr that was live when it was compiled, and a lookup whose
// caller's current dispatch address doesn't match is treated as a
// clean miss — the same role the AOT image format's checksum field
// plays for its own staleness check.
package codecache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"

	"jitvm/pkg/vm"
)

// Key identifies one cached compilation by the blake2b-256 hash of its
// bytecode and pool shape.
type Key [32]byte

// ComputeKey hashes bytecode together with poolShape, the caller's own
// summary of what the method's pool would hold (entry count and kind
// tags, not the entries themselves — those are live objects with no
// identity that survives a process restart, per the pool package's
// "object identity, not deep equality" contract). A zero separator
// between the two keeps "bytecode=AB, shape=C" from hashing the same as
// "bytecode=A, shape=BC".
func ComputeKey(bytecode, poolShape []byte) Key {
	h, _ := blake2b.New256(nil)
	h.Write(bytecode)
	h.Write([]byte{0})
	h.Write(poolShape)

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%x", k[:8])
}

// Record is the on-disk form of a vm.Compiled value.
type Record struct {
	Code         []byte
	Lines        []vm.LineEntry
	Handlers     []vm.HandlerEntry
	LocalWords   int
	DispatchAddr uintptr
}

// Compiled reconstructs the vm.Compiled value r describes. Entry is
// left zero; the caller places Code into executable memory itself and
// fills Entry in from that, exactly as it would for a freshly compiled
// method.
func (r *Record) Compiled() *vm.Compiled {
	return &vm.Compiled{
		Code:       r.Code,
		Lines:      r.Lines,
		Handlers:   r.Handlers,
		LocalWords: r.LocalWords,
	}
}

func encodeRecord(r *Record) []byte {
	var buf bytes.Buffer

	writeU32 := func(n int) { binary.Write(&buf, binary.LittleEndian, uint32(n)) }

	writeU32(len(r.Code))
	buf.Write(r.Code)

	writeU32(len(r.Lines))
	for _, l := range r.Lines {
		binary.Write(&buf, binary.LittleEndian, int32(l.MachineOffset))
		binary.Write(&buf, binary.LittleEndian, int32(l.BytecodeIP))
		binary.Write(&buf, binary.LittleEndian, int32(l.SourceLine))
	}

	writeU32(len(r.Handlers))
	for _, h := range r.Handlers {
		binary.Write(&buf, binary.LittleEndian, int32(h.MachineStart))
		binary.Write(&buf, binary.LittleEndian, int32(h.MachineEnd))
		binary.Write(&buf, binary.LittleEndian, int32(h.MachineHandler))
		binary.Write(&buf, binary.LittleEndian, int32(h.CatchType))
	}

	binary.Write(&buf, binary.LittleEndian, int32(r.LocalWords))
	binary.Write(&buf, binary.LittleEndian, uint64(r.DispatchAddr))

	return buf.Bytes()
}

func decodeRecord(data []byte) (*Record, error) {
	r := bytes.NewReader(data)
	rec := &Record{}

	readU32 := func() (uint32, error) {
		var n uint32
		err := binary.Read(r, binary.LittleEndian, &n)
		return n, err
	}

	codeLen, err := readU32()
	if err != nil {
		return nil, fmt.Errorf("codecache: truncated record: %w", err)
	}
	rec.Code = make([]byte, codeLen)
	if _, err := r.Read(rec.Code); err != nil {
		return nil, fmt.Errorf("codecache: truncated code: %w", err)
	}

	lineCount, err := readU32()
	if err != nil {
		return nil, fmt.Errorf("codecache: truncated record: %w", err)
	}
	rec.Lines = make([]vm.LineEntry, lineCount)
	for i := range rec.Lines {
		var mo, bip, sl int32
		for _, dst := range []*int32{&mo, &bip, &sl} {
			if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
				return nil, fmt.Errorf("codecache: truncated line table: %w", err)
			}
		}
		rec.Lines[i] = vm.LineEntry{MachineOffset: int(mo), BytecodeIP: int(bip), SourceLine: int(sl)}
	}

	handlerCount, err := readU32()
	if err != nil {
		return nil, fmt.Errorf("codecache: truncated record: %w", err)
	}
	rec.Handlers = make([]vm.HandlerEntry, handlerCount)
	for i := range rec.Handlers {
		var ms, me, mh, ct int32
		for _, dst := range []*int32{&ms, &me, &mh, &ct} {
			if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
				return nil, fmt.Errorf("codecache: truncated handler table: %w", err)
			}
		}
		rec.Handlers[i] = vm.HandlerEntry{
			MachineStart:   int(ms),
			MachineEnd:     int(me),
			MachineHandler: int(mh),
			CatchType:      int(ct),
		}
	}

	var localWords int32
	if err := binary.Read(r, binary.LittleEndian, &localWords); err != nil {
		return nil, fmt.Errorf("codecache: truncated record: %w", err)
	}
	rec.LocalWords = int(localWords)

	var dispatchAddr uint64
	if err := binary.Read(r, binary.LittleEndian, &dispatchAddr); err != nil {
		return nil, fmt.Errorf("codecache: truncated record: %w", err)
	}
	rec.DispatchAddr = uintptr(dispatchAddr)

	return rec, nil
}

// Cache wraps a pebble database dedicated to compiled-record storage.
type Cache struct {
	db *pebble.DB
}

// Open opens (creating if necessary) the pebble database rooted at dir.
func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get looks up key. A clean miss and a DispatchAddr mismatch against
// the caller's current dispatchAddr are both reported as (nil, false,
// nil) — the caller recompiles either way, the distinction only
// matters for cache hit-rate diagnostics it doesn't currently make.
func (c *Cache) Get(key Key, dispatchAddr uintptr) (*Record, bool, error) {
	value, closer, err := c.db.Get(key[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	buf := make([]byte, len(value))
	copy(buf, value)

	rec, err := decodeRecord(buf)
	if err != nil {
		return nil, false, err
	}
	if rec.DispatchAddr != dispatchAddr {
		return nil, false, nil
	}
	return rec, true, nil
}

// Put stores compiled under key, stamping dispatchAddr so a later
// process whose dispatch bridge landed at a different address treats
// this record as a miss instead of loading code that calls through a
// now-meaningless immediate.
func (c *Cache) Put(key Key, compiled *vm.Compiled, dispatchAddr uintptr) error {
	rec := &Record{
		Code:         compiled.Code,
		Lines:        compiled.Lines,
		Handlers:     compiled.Handlers,
		LocalWords:   compiled.LocalWords,
		DispatchAddr: dispatchAddr,
	}
	return c.db.Set(key[:], encodeRecord(rec), pebble.Sync)
}

var (
	global     *Cache
	globalOnce sync.Once
	globalErr  error
	globalMu   sync.RWMutex
)

// OpenGlobal lazily opens the process-wide cache singleton at dir,
// matching the teacher's InitializeGlobalRepository/GetGlobalRepository
// split: every caller after the first shares the one handle.
// NewProcessor does not call it; it takes its *Cache as an argument.
func OpenGlobal(dir string) error {
	globalOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		global, globalErr = Open(dir)
	})
	return globalErr
}

// Global returns the process-wide cache singleton, or nil if
// OpenGlobal has not been called (or failed).
func Global() *Cache {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// CloseGlobal closes and clears the global singleton, primarily for
// test teardown.
func CloseGlobal() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil
	}
	err := global.Close()
	global = nil
	globalOnce = sync.Once{}
	return err
}
