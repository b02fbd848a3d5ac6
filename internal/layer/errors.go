package layer

import "errors"

// Layer errors. Load-path errors leave the controller in NoRegion.
var (
	ErrNotInitialized   = errors.New("layer not initialized")
	ErrFileNotFound     = errors.New("region file not found")
	ErrFileUnreadable   = errors.New("region file unreadable")
	ErrFileUnwritable   = errors.New("region file unwritable")
	ErrDecodeTruncated  = errors.New("region file truncated")
	ErrDecodeMalformed  = errors.New("region file malformed")
	ErrGeometryMismatch = errors.New("region geometry does not match map")
	ErrAlreadyExists    = errors.New("region file already exists")
	ErrNoActiveRegion   = errors.New("no active region")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrNotInitialized, "not_initialized"},
	{ErrFileNotFound, "file_not_found"},
	{ErrFileUnreadable, "file_unreadable"},
	{ErrFileUnwritable, "file_unwritable"},
	{ErrDecodeTruncated, "decode_truncated"},
	{ErrDecodeMalformed, "decode_malformed"},
	{ErrGeometryMismatch, "geometry_mismatch"},
	{ErrAlreadyExists, "already_exists"},
	{ErrNoActiveRegion, "no_active_region"},
}

// ErrorKind returns a short stable identifier for a layer error, "" for nil
// and "unknown" for errors outside the taxonomy.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unknown"
}
