package crate

import "fmt"

// Sentinel errors for the allocation and serialization boundary failure
// modes. Structural failures (invalid entity, duplicate/missing
// component) are reported locally as a nil pointer or false return
// instead of an error — only allocation and serialization failures
// propagate.

// OutOfMemoryError is returned when the chunk pool cannot satisfy a
// request for a new chunk. Rows already placed by a partially completed
// batch remain valid.
type OutOfMemoryError struct {
	Reason string
}

func (e OutOfMemoryError) Error() string {
	return fmt.Sprintf("out of memory: %s", e.Reason)
}

// PoolExhaustedError is returned when the entity index space (2^24 live
// and recycled slots) is saturated.
type PoolExhaustedError struct{}

func (e PoolExhaustedError) Error() string {
	return "entity pool exhausted: index space saturated"
}

// UnsupportedVersionError is returned on load when the stream's format
// version falls outside [minSupportedVersion, formatVersion].
type UnsupportedVersionError struct {
	Version uint32
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported format version: %d", e.Version)
}

// UnknownComponentError is returned on load when a stream references a
// component whose stable hash isn't registered in the receiving registry.
type UnknownComponentError struct {
	Hash uint64
	Name string
}

func (e UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component %q (hash %#x) not registered", e.Name, e.Hash)
}

// ChecksumMismatchError is returned on load when the trailing checksum
// doesn't match the stream's body.
type ChecksumMismatchError struct {
	Want, Got uint32
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: want %#x got %#x", e.Want, e.Got)
}

// CorruptedDataError is returned on load when the stream is internally
// inconsistent (truncated, malformed length prefix, etc).
type CorruptedDataError struct {
	Reason string
}

func (e CorruptedDataError) Error() string {
	return fmt.Sprintf("corrupted data: %s", e.Reason)
}

// InvalidMagicError is returned on load when the stream doesn't begin
// with the expected magic number.
type InvalidMagicError struct {
	Got uint32
}

func (e InvalidMagicError) Error() string {
	return fmt.Sprintf("invalid magic number: %#x", e.Got)
}

