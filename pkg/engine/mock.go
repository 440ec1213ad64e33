package engine

import (
	"context"
)

// Mock is a deterministic Engine used by pkg/render's tests and any caller
// exercising the pipeline without a real typesetting compiler wired in. It
// reads the entrypoint through the FileResolver (so missing-file behavior
// is exercised identically to a real engine) and produces a PDF whose
// bytes are a pure function of the entrypoint contents and the data JSON,
// satisfying the determinism requirement of spec §4.8.
type Mock struct {
	// Fail, if set, is returned verbatim instead of compiling.
	Fail error
	// EmptyOutput, if true, returns a CompileResult with no PDF bytes,
	// exercising the EmptyOutput edge case of spec §4.9.
	EmptyOutput bool
}

const mockPDFHeader = "%PDF-1.7\n% papermake mock engine\n"

// Compile implements Engine.
func (m *Mock) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	if m.Fail != nil {
		return CompileResult{}, m.Fail
	}

	entry, err := req.Files.Read(ctx, req.Entrypoint)
	if err != nil {
		return CompileResult{}, err
	}

	if m.EmptyOutput {
		return CompileResult{}, nil
	}

	pdf := make([]byte, 0, len(mockPDFHeader)+len(entry)+len(req.DataJSON))
	pdf = append(pdf, mockPDFHeader...)
	pdf = append(pdf, entry...)
	pdf = append(pdf, '\n')
	pdf = append(pdf, req.DataJSON...)
	return CompileResult{PDF: pdf}, nil
}
