// Package engine defines the binding contract between papermake's render
// pipeline and an external typesetting compiler, per spec §4.8. The
// compiler itself is an external collaborator and explicitly out of scope
// (spec.md Non-goals); this package defines the interface and ships a mock
// implementation used by pkg/render's tests.
package engine

import (
	"context"

	"github.com/papermake/papermake/pkg/errs"
)

// FileResolver is the capability a compiler uses to read bundle files
// during compilation. pkg/vfs.FS satisfies this interface.
type FileResolver interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(path string) bool
}

// CompileRequest carries everything the compiler needs for one invocation,
// per spec §4.8.
type CompileRequest struct {
	Files      FileResolver
	Entrypoint string
	// DataJSON is the canonical JSON text of the render's input data,
	// bound to an input named "data" per the engine contract in §6.
	DataJSON []byte
}

// CompileResult carries the compiler's output.
type CompileResult struct {
	PDF         []byte
	Diagnostics []errs.Diagnostic
}

// Engine is the pluggable compiler binding. Compile must be safe to call
// from multiple worker goroutines concurrently with distinct requests; it
// must not itself suspend on anything but CPU work, per the concurrency
// model in spec §5 (compilation occupies a worker thread for its full
// duration and does not suspend).
type Engine interface {
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
}
