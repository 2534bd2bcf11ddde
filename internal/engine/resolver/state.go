package resolver

import "apexintel/internal/engine/parser"

// FileState tracks how far one compilation unit has progressed through the
// resolution pipeline.
type FileState int

const (
	StateUnparsed FileState = iota
	StateParsed
	StateLocallyResolved
	StateCrossFileResolved
	StateStale
)

func (s FileState) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateParsed:
		return "parsed"
	case StateLocallyResolved:
		return "locally_resolved"
	case StateCrossFileResolved:
		return "cross_file_resolved"
	case StateStale:
		return "stale"
	}
	return "unknown"
}

// DetailLevel bounds how much of a referenced type's member surface must be
// resolved before a consumer request is satisfied. Lower levels skip
// private-member resolution of dependencies for latency.
type DetailLevel int

const (
	DetailPublicAPI DetailLevel = iota
	DetailProtected
	DetailPrivate
	DetailFull
)

func (d DetailLevel) String() string {
	switch d {
	case DetailPublicAPI:
		return "public_api"
	case DetailProtected:
		return "protected"
	case DetailPrivate:
		return "private"
	case DetailFull:
		return "full"
	}
	return "public_api"
}

// ResolutionState is the per-file summary surfaced to consumers.
// UnresolvedReferences is data, not an error: a reference that survives a
// full pass unresolved is an unknown symbol.
type ResolutionState struct {
	FileID               string
	Version              int
	State                FileState
	UnresolvedReferences int
	Diagnostics          []parser.Diagnostic
}
