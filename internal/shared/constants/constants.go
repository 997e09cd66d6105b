package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultFilePerm is the default permission used when writing --output files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultCLITimeout bounds a single CLI inspection. Zero disables the bound.
	DefaultCLITimeout = 30 * time.Second
	// MaxAPIRequestBodyBytes caps request bodies accepted by the REST service.
	MaxAPIRequestBodyBytes = 1 << 20
	// DefaultShutdownTimeout is how long serve waits for in-flight requests.
	DefaultShutdownTimeout = 30 * time.Second
)
