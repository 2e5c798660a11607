package app

import "errors"

var (
	// ErrInvalidInput marks client errors in request payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFileType rejects uploads that are not PDF or text.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrEmptyDocument rejects uploads with no extractable text.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrRecordNotFound indicates a missing history record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNotOwner indicates an ownership mismatch on a history record.
	ErrNotOwner = errors.New("not the record owner")
	// ErrGenerationFailed indicates the LLM call did not produce content.
	// There is nothing to return without the model, so this is always fatal
	// to the request.
	ErrGenerationFailed = errors.New("generation failed")
)
