// internal/app/system/limits/limits.go
package limits

// Request size limits shared by the router and the upload handlers.
const (
	// MaxRequestBody caps every request body, multipart uploads included.
	MaxRequestBody = 10 << 20 // 10 MB

	// MaxFormMemory is held in memory while parsing multipart bodies;
	// larger parts spill to temporary files.
	MaxFormMemory = 10 << 20
)
