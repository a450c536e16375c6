package service

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	neturl "net/url"
	"syscall"
	"time"

	"google.golang.org/api/googleapi"
)

type errTmpIf interface{ Temporary() bool }
type errTmp struct{ error }

func (t errTmp) Temporary() bool    { return true }
func (t *errTmp) Unwrap() error     { return t.error }
func MakeTemporary(err error) error { return &errTmp{err} }

type errFatalIf interface{ Fatal() bool }
type errFatal struct{ error }

func (t errFatal) Fatal() bool    { return true }
func (t *errFatal) Unwrap() error { return t.error }
func MakeFatal(err error) error   { return &errFatal{err} }

// Temporary inspects the error trace and returns whether the error is transient
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	// A fatal mark wins over everything else
	if Fatal(err) {
		return false
	}

	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return true
		}
		err = uerr.Err
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ENOMEM, syscall.EPIPE, syscall.ETIMEDOUT:
			return true
		}
	}

	var tmp errTmpIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code >= 500
	}
	// FTP replies 4xx are "transient negative completion"
	var ftpError *textproto.Error
	if errors.As(err, &ftpError) {
		return ftpError.Code >= 400 && ftpError.Code < 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Fatal inspects the error and returns whether it's a fatal error
func Fatal(err error) bool {
	var tmp errFatalIf
	if errors.As(err, &tmp) {
		return tmp.Fatal()
	}
	return false
}

// MergeErrors, appending texts
// if priorityToErr is true, priority to the fatal error then to the temporary
// else, priority to no error, then to the temporary and finally to the fatal error.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if newErr == nil {
		if !priorityToError {
			return nil
		}
	} else if err == nil {
		err = newErr
	} else if priorityToError != Temporary(err) {
		err = fmt.Errorf("%w\n %v", err, newErr)
	} else {
		err = fmt.Errorf("%w\n %v", newErr, err)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}

// Retriable calls f until it succeeds, returns a non-temporary error, or has been called nbTries times.
// The delay between two calls starts at backoff and doubles after each failure.
// It returns the last error of f, or ctx.Err() if ctx is done while waiting.
func Retriable(ctx context.Context, f func() error, backoff time.Duration, nbTries int) error {
	var err error
	for i := 0; i < nbTries; i++ {
		if i > 0 {
			t := time.NewTimer(backoff << (i - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err = f(); err == nil || !Temporary(err) {
			return err
		}
	}
	return err
}
