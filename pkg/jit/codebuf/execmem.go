//go:build linux

package codebuf

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultRegionSize is the default size of one executable memory region.
const DefaultRegionSize = 16 * 1024 * 1024 // 16MB

// ExecutableMemory manages one mmap'd region with execute permission,
// into which finished Compiled records are copied. A method's Buffer is
// ordinary Go memory while it is being built (growable, not executable);
// once compilation finishes the final bytes are placed here, where they
// are immutable for the rest of the VM's lifetime except for the
// documented call-site patch (§4.6).
type ExecutableMemory struct {
	region []byte
	used   int
	mu     sync.Mutex
}

// NewExecutableMemory allocates one executable region via mmap.
func NewExecutableMemory(size int) (*ExecutableMemory, error) {
	if size <= 0 {
		size = DefaultRegionSize
	}

	region, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("codebuf: mmap executable region: %w", err)
	}

	return &ExecutableMemory{region: region}, nil
}

// Place copies code into the region and returns its base address plus
// the backing slice view, or an error if the region is exhausted.
func (em *ExecutableMemory) Place(code []byte) (uintptr, []byte, error) {
	em.mu.Lock()
	defer em.mu.Unlock()

	size := alignUp(len(code), wordAlign)
	if em.used+size > len(em.region) {
		return 0, nil, fmt.Errorf("codebuf: out of executable memory: need %d, have %d", size, len(em.region)-em.used)
	}

	dst := em.region[em.used : em.used+len(code)]
	copy(dst, code)
	addr := em.baseAddress() + uintptr(em.used)
	em.used += size

	return addr, em.region[addr-em.baseAddress() : addr-em.baseAddress()+uintptr(len(code))], nil
}

func (em *ExecutableMemory) baseAddress() uintptr {
	if len(em.region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&em.region[0]))
}

// Bounds returns the [start, end) address range of the region, for
// recognizing addresses inside JIT-generated code. No code in this
// module calls it; the unwinder does not consult it.
func (em *ExecutableMemory) Bounds() (start, end uintptr) {
	if len(em.region) == 0 {
		return 0, 0
	}
	start = em.baseAddress()
	end = start + uintptr(len(em.region))
	return
}

// Used reports how many bytes of the region are occupied.
func (em *ExecutableMemory) Used() int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.used
}

// Capacity reports the region's total size.
func (em *ExecutableMemory) Capacity() int { return len(em.region) }

// Free releases the mmap'd region. After Free, every Compiled record
// placed in it is dangling; callers must not invoke compiled code or
// dereference addresses from Bounds after calling Free.
func (em *ExecutableMemory) Free() error {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.region == nil {
		return nil
	}
	err := unix.Munmap(em.region)
	em.region = nil
	em.used = 0
	return err
}

const wordAlign = 8

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
