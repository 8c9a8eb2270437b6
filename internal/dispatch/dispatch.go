// Package dispatch implements the service dispatcher: it extracts the
// requested operation from a parsed SOAP envelope, resolves the handler and
// authorization level for it, validates WS-Security credentials, invokes
// the handler, and frames the result (or fault) back into a SOAP envelope.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/handlers"
	"github.com/technosupport/onvif-gateway/internal/onviferr"
	"github.com/technosupport/onvif-gateway/internal/soapcodec"
	"github.com/technosupport/onvif-gateway/internal/users"
	"github.com/technosupport/onvif-gateway/internal/wssecurity"
)

// AuthChecker validates a WS-Security UsernameToken and resolves the
// authorization level held by its username.
type AuthChecker interface {
	Validate(tok wssecurity.Token) error
	LevelOf(username string) (authz.Level, error)
}

// Dispatcher wires together credential validation, authorization, and
// handler invocation for every registered ONVIF service; Dispatch picks the
// service for each request from its path (e.g. "device").
type Dispatcher struct {
	Registry    *handlers.Registry
	Auth        AuthChecker
	AuthEnabled bool
}

// New builds a Dispatcher. When authEnabled is false every operation is
// treated as satisfying Anonymous, matching a deployment that has
// deliberately disabled WS-Security (e.g. for an isolated test network).
func New(registry *handlers.Registry, auth AuthChecker, authEnabled bool) *Dispatcher {
	return &Dispatcher{Registry: registry, Auth: auth, AuthEnabled: authEnabled}
}

// Result is the outcome of dispatching one request: the full SOAP envelope
// to write back, and the HTTP status it belongs with.
type Result struct {
	Body       string
	HTTPStatus int
	// Authenticated is true only when a UsernameToken was actually
	// presented and validated successfully, so the caller can clear a
	// brute-force failure record without also doing so for anonymous
	// operations an attacker could use to reset their own lockout clock.
	Authenticated bool
}

// Dispatch extracts the service name from servicePath (the last path
// segment, e.g. "device_service" -> "device"), parses the envelope, and
// invokes the matching handler.
func Dispatch(ctx context.Context, d *Dispatcher, servicePath string, rawBody []byte, soapActionHeader, contentTypeHeader string) Result {
	env, err := soapcodec.Parse(rawBody)
	if err != nil {
		return faultResult(onviferr.New(onviferr.WellFormed, err.Error()))
	}

	operation := resolveOperation(soapActionHeader, contentTypeHeader, env.InferredAction)
	if operation == "" {
		return faultResult(onviferr.New(onviferr.WellFormed, "could not determine the requested operation"))
	}

	service := serviceNameFromPath(servicePath)
	handler, ok := d.Registry.Lookup(service)
	if !ok {
		return faultResult(onviferr.Newf(onviferr.ActionNotSupported, "no handler registered for service %q", service))
	}

	authenticated := false
	if d.AuthEnabled {
		ok, oerr := d.authorize(service, operation, env)
		if oerr != nil {
			return faultResult(oerr)
		}
		authenticated = ok
	}

	if !supportsAction(handler, operation) {
		return faultResult(onviferr.Newf(onviferr.ActionNotSupported, "%s service does not implement operation %q", service, operation))
	}

	body, err := handler.Handle(ctx, handlers.Request{Operation: operation, BodyXML: env.BodyXML})
	if err != nil {
		if oerr, ok := err.(*onviferr.Error); ok {
			return faultResult(oerr)
		}
		return faultResult(onviferr.Newf(onviferr.Internal, "unexpected error: %v", err))
	}

	return Result{Body: soapcodec.BuildResponse(body), HTTPStatus: http.StatusOK, Authenticated: authenticated}
}

// authorize returns whether a credential was actually validated (true only
// when the operation required more than Anonymous and the UsernameToken
// checked out), plus a fault on any rejection.
func (d *Dispatcher) authorize(service, operation string, env *soapcodec.Envelope) (bool, *onviferr.Error) {
	required := authz.RequiredLevel(service, operation)
	if required == authz.Anonymous {
		return false, nil
	}

	if env.Header == nil {
		return false, onviferr.New(onviferr.NotAuthorized, "this operation requires WS-Security credentials")
	}

	tok := wssecurity.Token{
		Username:     env.Header.Username,
		Password:     env.Header.Password,
		PasswordType: env.Header.PasswordType,
		Nonce:        env.Header.Nonce,
		Created:      env.Header.Created,
		HasNonce:     env.Header.HasNonce,
		HasCreated:   env.Header.HasCreated,
	}

	if err := d.Auth.Validate(tok); err != nil {
		return false, onviferr.New(onviferr.NotAuthorized, err.Error())
	}

	level, err := d.Auth.LevelOf(env.Header.Username)
	if err != nil {
		return false, onviferr.New(onviferr.NotAuthorized, "unknown user")
	}

	if !authz.Satisfies(level, required) {
		return false, onviferr.New(onviferr.NotAuthorized, fmt.Sprintf("operation requires %s privileges", required))
	}
	return true, nil
}

// supportsAction reports whether operation appears in handler's declared
// SupportedActions, so the dispatcher can reject it with ActionNotSupported
// before ever calling Handle.
func supportsAction(handler handlers.Handler, operation string) bool {
	for _, a := range handler.SupportedActions() {
		if a == operation {
			return true
		}
	}
	return false
}

func faultResult(oerr *onviferr.Error) Result {
	return Result{Body: oerr.SOAPFault(), HTTPStatus: oerr.HTTPStatus()}
}

// resolveOperation runs the three-tier action resolution: the SOAPAction
// header first, then the action= parameter of the Content-Type header, then
// the action inferred from the first body child element.
func resolveOperation(soapActionHeader, contentTypeHeader, inferred string) string {
	if soapActionHeader != "" {
		action := strings.Trim(soapActionHeader, `"`)
		if idx := strings.LastIndexAny(action, "/#"); idx >= 0 {
			action = action[idx+1:]
		}
		if action != "" {
			return action
		}
	}
	if action := actionFromContentType(contentTypeHeader); action != "" {
		return action
	}
	return inferred
}

// actionFromContentType extracts the action= parameter from a Content-Type
// header value such as `application/soap+xml; charset=utf-8; action="GetDeviceInformation"`.
func actionFromContentType(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		part = strings.TrimSpace(part)
		k, v, found := strings.Cut(part, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(k), "action") {
			continue
		}
		action := strings.Trim(strings.TrimSpace(v), `"`)
		if idx := strings.LastIndexAny(action, "/#"); idx >= 0 {
			action = action[idx+1:]
		}
		return action
	}
	return ""
}

// serviceNameFromPath turns "/onvif/device_service" into "device".
func serviceNameFromPath(path string) string {
	seg := path
	if idx := strings.LastIndex(seg, "/"); idx >= 0 {
		seg = seg[idx+1:]
	}
	return strings.TrimSuffix(seg, "_service")
}

// PasswordLookupFor adapts a users.Store into the wssecurity.PasswordLookup
// signature, looking up the account synchronously (the store's Lookup
// itself takes a context, which callers can bind via closure if needed).
func PasswordLookupFor(store users.Store) wssecurity.PasswordLookup {
	return func(username string) (string, bool) {
		acct, err := store.Lookup(context.Background(), username)
		if err != nil || acct.Disabled {
			return "", false
		}
		password, err := store.Password(context.Background(), acct)
		if err != nil {
			return "", false
		}
		return password, true
	}
}
