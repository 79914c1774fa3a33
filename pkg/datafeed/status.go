package datafeed

import "errors"

// Status is the stable result code family from spec.md §6. Codes are never
// reused or renumbered; new failure kinds get a new variable, not a
// repurposed one.
type Status int

const (
	StatusOK            Status = 0
	StatusErr           Status = -1
	StatusErrMalloc     Status = -2
	StatusErrArg        Status = -3
	StatusErrBug        Status = -4
	StatusErrSamplerate Status = -5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusErr:
		return "ERR"
	case StatusErrMalloc:
		return "ERR_MALLOC"
	case StatusErrArg:
		return "ERR_ARG"
	case StatusErrBug:
		return "ERR_BUG"
	case StatusErrSamplerate:
		return "ERR_SAMPLERATE"
	default:
		return "ERR_UNKNOWN"
	}
}

// Sentinel errors mirroring the Status codes, for use with errors.Is in
// driver and engine code that prefers idiomatic Go error handling over
// returning a bare Status.
var (
	ErrGeneric    = errors.New("acquire: generic error")
	ErrMalloc     = errors.New("acquire: allocation failed")
	ErrArg        = errors.New("acquire: invalid argument")
	ErrBug        = errors.New("acquire: internal programming error")
	ErrSamplerate = errors.New("acquire: samplerate not achievable")
)

// StatusOf maps one of the sentinel errors (or a wrapper of one) to its
// Status code. Unrecognized errors map to StatusErr.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrMalloc):
		return StatusErrMalloc
	case errors.Is(err, ErrArg):
		return StatusErrArg
	case errors.Is(err, ErrBug):
		return StatusErrBug
	case errors.Is(err, ErrSamplerate):
		return StatusErrSamplerate
	default:
		return StatusErr
	}
}
