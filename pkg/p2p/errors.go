package p2p

import "errors"

var (
	ErrAlreadyRegistered = errors.New("message types already registered")
	ErrInvalidTypeCode   = errors.New("invalid message type code")
	ErrListening         = errors.New("protocol already listening")
	ErrClosed            = errors.New("protocol closed")
	ErrSendFailed        = errors.New("send failed")
	ErrNoReply           = errors.New("no reply")
)
