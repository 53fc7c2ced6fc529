// Package prompt turns a stored conversation plus the new user text into the
// request sent to a provider.
//
// The Assembler keeps turn order, guarantees a leading system turn and
// enforces a context budget measured by a Counter (characters or tokens).
// When the history is too large the oldest non-system turns are dropped
// first; a single turn that still does not fit is cut at the character level
// and marked with TruncationMarker.
package prompt
