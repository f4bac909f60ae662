// Package pack builds git-style pack files from a selected subset of a
// content-addressed object store. A Builder accumulates object ids, directly
// or by transitive closure, then writes them as a pack and companion index
// into a directory, delta-compressing entries across a configurable number
// of worker threads.
package pack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/odvcencio/gitpack/pkg/object"
)

// Source resolves object ids to their type and raw content. Missing objects
// must yield an error wrapping os.ErrNotExist. Implementations must tolerate
// concurrent reads. *object.Store satisfies this.
type Source interface {
	Read(h object.Hash) (object.ObjectType, []byte, error)
}

var (
	ErrNilStore          = errors.New("pack: nil object source")
	ErrInvalidID         = errors.New("pack: invalid object id")
	ErrInvalidPath       = errors.New("pack: invalid target path")
	ErrObjectNotFound    = errors.New("pack: object not found")
	ErrDirectoryNotFound = errors.New("pack: target directory does not exist")
	ErrBuildFailed       = errors.New("pack: build failed")
	ErrClosed            = errors.New("pack: builder is closed")
	ErrNotYetWritten     = errors.New("pack: no pack written yet")
)

const defaultDeltaWindow = 10

// Result is the immutable summary of a completed write.
type Result struct {
	// ObjectCount is the number of objects emitted into the pack.
	ObjectCount int
	// PackHash is the canonical pack identity: the content hash over the
	// sorted set of contained object ids. It also names the emitted files.
	PackHash object.Hash
}

// Builder selects objects and writes them as a pack file. A Builder is a
// stateful handle: mutate it, write it (possibly several times), Reset it,
// and Close it when done. It is not safe for concurrent use; independent
// Builders against the same Source may run concurrently.
type Builder struct {
	src      Source
	order    []object.Hash
	selected map[object.Hash]struct{}
	threads  int
	window   int
	closed   bool
	last     *Result
}

// New creates a Builder over src with an empty selection and a
// single-threaded compression stage.
func New(src Source) (*Builder, error) {
	if src == nil {
		return nil, ErrNilStore
	}
	return &Builder{
		src:      src,
		selected: make(map[object.Hash]struct{}),
		threads:  1,
		window:   defaultDeltaWindow,
	}, nil
}

// Count returns the current selection size.
func (b *Builder) Count() int {
	return len(b.order)
}

// Add inserts a single object id into the selection. The id is not checked
// against the source; a dangling id surfaces as a build failure at write
// time. Re-adding a selected id is a no-op.
func (b *Builder) Add(id object.Hash) error {
	if b.closed {
		return ErrClosed
	}
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	b.add(id)
	return nil
}

func (b *Builder) add(id object.Hash) {
	if _, ok := b.selected[id]; ok {
		return
	}
	b.selected[id] = struct{}{}
	b.order = append(b.order, id)
}

// AddRecursively inserts id and every object transitively reachable from it.
// The walk uses an explicit stack and a visited set, so diamond-shaped
// reference graphs insert each object once and reference cycles terminate.
// If id or any transitive reference cannot be resolved the selection is left
// exactly as it was.
func (b *Builder) AddRecursively(id object.Hash) error {
	if b.closed {
		return ErrClosed
	}
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	visited := make(map[object.Hash]struct{})
	walked := make([]object.Hash, 0, 16)
	stack := []object.Hash{id}

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, seen := visited[h]; seen {
			continue
		}
		visited[h] = struct{}{}

		objType, data, err := b.src.Read(h)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrObjectNotFound, h)
			}
			return fmt.Errorf("pack: read %s: %w", h, err)
		}
		walked = append(walked, h)

		refs, err := object.References(objType, data)
		if err != nil {
			return fmt.Errorf("pack: parse %s (%s): %w", h, objType, err)
		}
		// Push in reverse so references are visited in declared order.
		for i := len(refs) - 1; i >= 0; i-- {
			stack = append(stack, refs[i])
		}
	}

	for _, h := range walked {
		b.add(h)
	}
	return nil
}

// SetMaxThreads configures the worker count for the compression stage of
// the next write. Zero requests all available processing units. The
// returned value is the count actually configured, clamped to the
// platform's parallelism; callers must treat it as ground truth.
func (b *Builder) SetMaxThreads(n int) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("pack: negative thread count %d", n)
	}
	limit := runtime.GOMAXPROCS(0)
	if n == 0 || n > limit {
		n = limit
	}
	b.threads = n
	return n, nil
}

// SetDeltaWindow configures how many preceding same-type entries are
// considered as delta bases. Zero disables delta compression. Returns the
// configured value.
func (b *Builder) SetDeltaWindow(n int) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("pack: negative delta window %d", n)
	}
	b.window = n
	return n, nil
}

// Reset discards the selection and any previous write result, returning the
// builder to a fresh open state. Thread configuration is preserved.
func (b *Builder) Reset() error {
	if b.closed {
		return ErrClosed
	}
	b.order = nil
	b.selected = make(map[object.Hash]struct{})
	b.last = nil
	return nil
}

// Close releases the builder. Every subsequent operation fails with
// ErrClosed. Closing twice is harmless.
func (b *Builder) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.order = nil
	b.selected = nil
	b.last = nil
	return nil
}

// PackHash returns the identity of the last written pack. It fails with
// ErrNotYetWritten before the first successful write or after a Reset.
func (b *Builder) PackHash() (object.Hash, error) {
	if b.closed {
		return "", ErrClosed
	}
	if b.last == nil {
		return "", ErrNotYetWritten
	}
	return b.last.PackHash, nil
}

// WrittenCount returns the object count of the last written pack, guarded
// like PackHash.
func (b *Builder) WrittenCount() (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if b.last == nil {
		return 0, ErrNotYetWritten
	}
	return b.last.ObjectCount, nil
}
