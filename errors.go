package aes67

import "errors"

var (
	ErrInvalidSampleRate    = errors.New("sample rate must be 44100, 48000 or 96000")
	ErrInvalidChannelCount  = errors.New("channel count must be between 1 and 64")
	ErrInvalidBitDepth      = errors.New("bit depth must be 16, 24 or 32")
	ErrInvalidPacketTime    = errors.New("packet time must be 125, 250, 333, 1000 or 4000 microseconds")
	ErrInvalidPort          = errors.New("port must be greater than 0")
	ErrMissingIdentity      = errors.New("id is required")
	ErrSenderClosed         = errors.New("sender is closed")
	ErrReceiverClosed       = errors.New("receiver is closed")
	ErrReceiverNotConnected = errors.New("receiver is not connected")
	ErrInvalidSDP           = errors.New("invalid SDP")
	ErrInvalidRTPPacket     = errors.New("invalid RTP packet")
	ErrReceiverNotFound     = errors.New("receiver not found")
	ErrSenderNotFound       = errors.New("sender not found")
	ErrNoStagedParams       = errors.New("no staged transport parameters")
	ErrNodeClosed           = errors.New("nmos node is closed")
)
