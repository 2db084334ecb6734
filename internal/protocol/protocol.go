// Package protocol implements the control wire format (revision 1).
//
// A frame is a command name followed by zero or more parameters and a
// terminator:
//
//	command (RS name US value)* GS
//
// where GS=0x1D, RS=0x1E and US=0x1F. Parameters are optional; an absent
// parameter leaves the stored value unchanged and a parameter with an
// empty value resets it.
package protocol

import "errors"

// Revision identifies the wire form implemented here: named parameters
// separated by ASCII group/record/unit separators.
const Revision = 1

const (
	Terminator byte = 0x1D // GS
	ParamSep   byte = 0x1E // RS
	FieldSep   byte = 0x1F // US

	// MaxFrameSize bounds a single frame including its terminator.
	MaxFrameSize = 64 << 10
)

// Commands
const (
	CmdConfig = "config"
	CmdFlow   = "flow"
	CmdStatus = "status"
)

// Parameter names that are not flow fields.
const (
	ParamNumber       = "number"
	ParamAcceleration = "acceleration"
	ParamFlows        = "flows"
	ParamGrid         = "grid"
	ParamState        = "state"
	ParamPushed       = "pushed"
	ParamLost         = "lost"
	ParamLate         = "late"
)

var (
	// ErrMalformedFrame is returned for frames that cannot be decoded.
	// Such frames are not acknowledged.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrFrameTooLarge is returned by ReadFrame when no terminator was
	// found within MaxFrameSize bytes. The oversized frame is discarded.
	ErrFrameTooLarge = errors.New("frame too large")
)
