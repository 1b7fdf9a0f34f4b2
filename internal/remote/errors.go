package remote

import "errors"

var (
	ErrUnavailable     = errors.New("remote service unavailable")
	ErrInvalidResponse = errors.New("invalid response from remote service")
	ErrNoFaceRemote    = errors.New("remote service detected no face")
)
