package model

import "errors"

// Error taxonomy for the aggregation pipeline. Symbol-level failures wrap
// ErrStore or ErrMalformedBar and are recovered at the per-symbol loop
// boundary; ErrConfiguration is fatal for the invocation.
var (
	// ErrStore indicates an underlying database operation failed.
	ErrStore = errors.New("bar store operation failed")

	// ErrMalformedBar indicates a raw bar failed timestamp parsing or
	// required-field extraction. Handled row-by-row, never batch-fatal.
	ErrMalformedBar = errors.New("malformed bar")

	// ErrResumePoint indicates incremental mode could not establish a
	// resume timestamp. Recovered by falling back to full aggregation.
	ErrResumePoint = errors.New("resume point unavailable")

	// ErrConfiguration indicates an invalid interval name or a missing
	// source/target directory.
	ErrConfiguration = errors.New("invalid configuration")
)
