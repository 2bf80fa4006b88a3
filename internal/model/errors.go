package model

import "github.com/pkg/errors"

// Error taxonomy shared by the acquisition path. Protocol and link errors are carried
// inside outcome values; none of them ends the sampling loop.
var (
	ErrFrameTooShort     = errors.New("frame too short")
	ErrAddressMismatch   = errors.New("module address mismatch")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrLinkFault         = errors.New("serial link fault")
	ErrSinkUnavailable   = errors.New("sink unavailable")
	ErrUnexpectedFailure = errors.New("unexpected failure")
)
