package vm

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is a managed thread's cooperative-safepoint state (§5).
type State int32

const (
	StateActive State = iota
	StateIdle
	StateExclusive
)

// Reference is one node of a thread's local reference chain: a strong
// GC root pinning Obj alive for the duration of the native frame that
// created it. The invoke bridge snapshots Thread.Reference on entry and
// restores it on return, discarding every node created in between
// (§3 "Reference stack", §8 property 6).
type Reference struct {
	Obj  any
	Next *Reference
}

// Thread is one managed thread's VM-visible state: its native OS
// identity, its current frame pointer, its reference chain head, its
// safepoint state, and its pending exception slot. ID uses
// github.com/google/uuid rather than an incrementing counter so threads
// created concurrently never collide; nothing else in the module reads
// it.
type Thread struct {
	ID uuid.UUID

	Frame     Frame
	Reference *Reference

	state     atomic.Int32
	Exception any // pending exception object, or nil

	// Parent links to the Thread that created this one, matching the
	// host embedder API's makeThread(vm, javaThreadObj, parent).
	Parent *Thread

	// ResumeSP/ResumePC cache the unwinder's decision between the four
	// dispatch calls its native entry trampoline makes to retrieve it
	// (§4.7); only pkg/runtime's unwinder reads or writes these.
	ResumeSP uintptr
	ResumePC uintptr

	// ResumeHasHandler records which of the unwinder's two outcomes
	// ResumeSP/ResumePC describe: true if they point at a matched
	// exception handler (which expects the exception object pushed as
	// its one operand-stack value), false if they describe an ordinary
	// return across a frame this layer does not own (which expects
	// nothing pushed — its caller inspects Exception directly instead).
	ResumeHasHandler bool
}

// NewThread creates a managed thread with a fresh identifier.
func NewThread(parent *Thread) *Thread {
	return &Thread{ID: uuid.New(), Parent: parent}
}

// State returns the thread's current safepoint state.
func (t *Thread) State() State { return State(t.state.Load()) }

// SetState transitions the thread to the given safepoint state. Called
// around every native call (§5 "Transitions to Idle ... issued
// precisely when the current thread is about to block in host code").
func (t *Thread) SetState(s State) { t.state.Store(int32(s)) }

// PushReference allocates a new reference-chain node for obj and links
// it as the new head, implementing makeLocalReference.
func (t *Thread) PushReference(obj any) *Reference {
	node := &Reference{Obj: obj, Next: t.Reference}
	t.Reference = node
	return node
}

// RestoreReference truncates the chain back to snapshot, releasing
// every node created since — implementing the invoke bridge's
// "disposes any local references created during the call" step and
// disposeLocalReference for the general case of disposing everything
// newer than a given point.
func (t *Thread) RestoreReference(snapshot *Reference) {
	t.Reference = snapshot
}

// LocalRef pins a single object as a GC root for as long as it is held,
// by pushing it onto thread's local-reference chain and truncating the
// chain back to its previous head on Release. It is the single-object
// counterpart to PushReference/RestoreReference for a caller that wants
// to keep exactly one object rooted across a call without threading a
// whole reference-chain scope through its own control flow — the method
// compiler holding the method being compiled live across compilation is
// the motivating case (§C supplemental feature 2).
type LocalRef struct {
	thread   *Thread
	snapshot *Reference
}

// NewLocalRef pins obj alive on thread's reference chain until Release is
// called.
func NewLocalRef(thread *Thread, obj any) *LocalRef {
	snapshot := thread.Reference
	thread.PushReference(obj)
	return &LocalRef{thread: thread, snapshot: snapshot}
}

// Release truncates thread's reference chain back to the point before
// this LocalRef was created, discarding the pin.
func (r *LocalRef) Release() {
	if r == nil {
		return
	}
	r.thread.RestoreReference(r.snapshot)
}

// classLock serializes class initialization and method compilation
// process-wide (§5 "a class-loader/compilation lock (classLock) is
// shared process-wide"). It is a single global because the spec
// describes one lock shared across the whole VM, not one per class.
var classLock sync.Mutex

// WithClassLock runs fn while holding the process-wide classLock,
// matching compileMethod2's and initClass's "re-checks ... under
// classLock" pattern.
func WithClassLock(fn func()) {
	classLock.Lock()
	defer classLock.Unlock()
	fn()
}
