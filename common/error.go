package common

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies provisioning failures. Each kind maps to a distinct process
// exit code so scripted callers can tell them apart; anything unclassified
// exits 1. The run aborts on the first failure either way.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotRoot
	KindDetection
	KindUnsupportedPlatform
	KindDependencyInstall
	KindDownload
	KindBuild
	KindVersionVerification
	KindDeviceNotFound
	KindAmbiguousDevice
)

var kindNames = map[Kind]string{
	KindUnknown:             "error",
	KindNotRoot:             "superuser required",
	KindDetection:           "os detection failed",
	KindUnsupportedPlatform: "unsupported platform",
	KindDependencyInstall:   "dependency install failed",
	KindDownload:            "download failed",
	KindBuild:               "build failed",
	KindVersionVerification: "version verification failed",
	KindDeviceNotFound:      "device not found",
	KindAmbiguousDevice:     "ambiguous device",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "error"
}

// exit codes start at 10 to stay clear of shell and cobra conventions
func (k Kind) ExitCode() int {
	if k == KindUnknown {
		return 1
	}
	return 9 + int(k)
}

type Error struct {
	kind Kind
	err  error
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// KindOf extracts the failure kind from anywhere in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

type HttpError struct {
	code int
	body string
}

// note: this does not close res.Body, caller should close it
func HttpErrorFromRes(res *http.Response) HttpError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return NewHttpError(res.StatusCode, string(body))
}

func NewHttpError(code int, body string) HttpError { return HttpError{code: code, body: body} }

func (e HttpError) Error() string {
	if len(e.body) == 0 {
		return fmt.Sprintf("http status %d", e.code)
	}
	return fmt.Sprintf("http status %d: %q", e.code, e.body)
}
func (e HttpError) Code() int { return e.code }
