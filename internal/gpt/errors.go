package gpt

import "golang.org/x/xerrors"

// Error kinds, spec §4.3.
var (
	ErrBadGeometry    = xerrors.New("bad geometry")
	ErrUnaligned      = xerrors.New("unaligned")
	ErrCodeUnsupported = xerrors.New("partition code unsupported in gpt")
	ErrOverlap        = xerrors.New("overlapping partition range")
	ErrNoFreeEntry    = xerrors.New("no free partition entry")
	ErrNameTooLong    = xerrors.New("partition name too long")
	ErrIO             = xerrors.New("i/o error")
	ErrRngExhausted   = xerrors.New("rng exhausted")
	ErrCorrupt        = xerrors.New("corrupt gpt structure")
	ErrNotFound       = xerrors.New("partition entry not found")
)
