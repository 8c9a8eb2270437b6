// Package onviferr is the ONVIF error→SOAP fault taxonomy: it maps the
// engine's error kinds to fault subcodes and HTTP status codes.
package onviferr

import (
	"fmt"
	"net/http"

	"github.com/technosupport/onvif-gateway/internal/soapcodec"
)

// Kind identifies one of the ONVIF error categories the engine can surface.
type Kind int

const (
	ActionNotSupported Kind = iota
	WellFormed
	InvalidArgVal
	NotFound
	ConfigurationConflict
	NotAuthorized
	MaxUsers
	HardwareFailure
	Internal
)

// Error is an ONVIF-classified error carrying enough detail to frame both
// its SOAP fault and its HTTP status.
type Error struct {
	Kind    Kind
	Message string
	// Subcode suffix for InvalidArgVal, e.g. "InvalidVideoSourceTokenToken".
	ArgSubcode string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidArg(subcode, reason string) *Error {
	return &Error{Kind: InvalidArgVal, Message: reason, ArgSubcode: subcode}
}

// soapCode, subcode and reason per the fault taxonomy table.
func (e *Error) soapFault() (code, subcode, reason string) {
	switch e.Kind {
	case ActionNotSupported:
		return "s:Sender", "ter:ActionNotSupported", e.Message
	case WellFormed:
		return "s:Sender", "ter:WellFormed", e.Message
	case InvalidArgVal:
		sub := "ter:InvalidArgVal"
		if e.ArgSubcode != "" {
			sub = "ter:InvalidArgVal/" + e.ArgSubcode
		}
		return "s:Sender", sub, e.Message
	case NotFound:
		return "s:Sender", "ter:NotFound", e.Message
	case ConfigurationConflict:
		return "s:Sender", "ter:ConfigurationConflict", e.Message
	case NotAuthorized:
		return "s:Sender", "ter:NotAuthorized", e.Message
	case MaxUsers:
		return "s:Sender", "ter:MaxUsers", e.Message
	case HardwareFailure:
		return "s:Receiver", "ter:HardwareFailure", e.Message
	default:
		return "s:Receiver", "ter:InternalError", e.Message
	}
}

// HTTPStatus is the status code C7/C8 write for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ActionNotSupported, WellFormed, InvalidArgVal:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case ConfigurationConflict:
		return http.StatusConflict
	case NotAuthorized:
		return http.StatusUnauthorized
	case MaxUsers:
		return http.StatusForbidden
	case HardwareFailure, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// SOAPFault renders the complete fault envelope for this error.
func (e *Error) SOAPFault() string {
	code, subcode, reason := e.soapFault()
	return soapcodec.BuildFault(code, subcode, reason)
}
