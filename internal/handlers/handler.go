// Package handlers implements the ONVIF device/media/ptz/imaging service
// operations against the in-process profile, preset, and hardware-driver
// state the engine maintains.
package handlers

import "context"

// Request is what the dispatcher hands to a Handler: the operation's name
// (the inferred/declared SOAPAction local name) and its raw body XML.
type Request struct {
	Operation string
	BodyXML   string
}

// Handler implements one ONVIF service (device, media, ptz, or imaging). A
// Handler returns the response body XML fragment (already namespaced,
// unwrapped from any envelope) or an *onviferr.Error classifying the
// failure.
type Handler interface {
	// Service is the lowercase service name this handler answers for, e.g.
	// "device", "media", "ptz", "imaging".
	Service() string

	// Handle dispatches req.Operation to the matching method and returns
	// the response body XML.
	Handle(ctx context.Context, req Request) (string, error)

	// SupportedActions lists every operation name this handler actually
	// implements. The dispatcher uses it to reject unimplemented
	// operations with ActionNotSupported before calling Handle.
	SupportedActions() []string
}

// Registry maps service names to their Handler.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry from the given handlers, keyed by their own
// Service() name.
func NewRegistry(hs ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(hs))}
	for _, h := range hs {
		r.handlers[h.Service()] = h
	}
	return r
}

// Lookup returns the handler registered for service, if any.
func (r *Registry) Lookup(service string) (Handler, bool) {
	h, ok := r.handlers[service]
	return h, ok
}
