package dispatch

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/crypto"
	"github.com/technosupport/onvif-gateway/internal/handlers"
	"github.com/technosupport/onvif-gateway/internal/users"
	"github.com/technosupport/onvif-gateway/internal/wssecurity"
)

func testKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()
	material := make([]byte, 32)
	_, err := rand.Read(material)
	require.NoError(t, err)
	keys := []crypto.MasterKey{{KID: "kid-1", Material: base64.StdEncoding.EncodeToString(material)}}
	blob, err := json.Marshal(keys)
	require.NoError(t, err)
	t.Setenv("MASTER_KEYS", string(blob))
	t.Setenv("ACTIVE_MASTER_KID", "kid-1")
	kr := crypto.NewKeyring()
	require.NoError(t, kr.LoadFromEnv())
	return kr
}

func buildDispatcher(t *testing.T) (*Dispatcher, users.Store) {
	store := users.NewMemoryStore(testKeyring(t))
	require.NoError(t, store.Create(context.Background(), "admin", "secret", authz.Administrator))

	v, err := wssecurity.New(wssecurity.Config{
		ClockSkew:         5 * time.Minute,
		NonceTTL:          5 * time.Minute,
		MaxNonceCacheSize: 100,
		RequireDigest:     true,
	}, PasswordLookupFor(store))
	require.NoError(t, err)

	checker := NewUserStoreChecker(v, store)
	registry := handlers.NewRegistry(handlers.NewDeviceHandler(handlers.DeviceInfo{Manufacturer: "Acme"}))
	return New(registry, checker, true), store
}

func digestEnvelope(username, password, nonceB64, created, action string) string {
	nonceBytes, _ := base64.StdEncoding.DecodeString(nonceB64)
	h := sha1.New()
	h.Write(nonceBytes)
	h.Write([]byte(created))
	h.Write([]byte(password))
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"
            xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
            xmlns:wsu="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd">
  <s:Header>
    <wsse:Security>
      <wsse:UsernameToken>
        <wsse:Username>` + username + `</wsse:Username>
        <wsse:Password Type="...#PasswordDigest">` + digest + `</wsse:Password>
        <wsse:Nonce EncodingType="...#Base64Binary">` + nonceB64 + `</wsse:Nonce>
        <wsu:Created>` + created + `</wsu:Created>
      </wsse:UsernameToken>
    </wsse:Security>
  </s:Header>
  <s:Body>
    <` + action + `/>
  </s:Body>
</s:Envelope>`
}

func TestDispatchAcceptsValidAuthenticatedRequest(t *testing.T) {
	d, _ := buildDispatcher(t)
	created := time.Now().UTC().Format(time.RFC3339)
	body := digestEnvelope("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created, "GetDeviceInformation")

	res := Dispatch(context.Background(), d, "/onvif/device_service", []byte(body), "", "")
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Contains(t, res.Body, "Acme")
}

func TestDispatchRejectsMissingCredentials(t *testing.T) {
	d, _ := buildDispatcher(t)
	body := `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><GetDeviceInformation/></s:Body></s:Envelope>`

	res := Dispatch(context.Background(), d, "/onvif/device_service", []byte(body), "", "")
	assert.Equal(t, http.StatusUnauthorized, res.HTTPStatus)
	assert.Contains(t, res.Body, "ter:NotAuthorized")
}

func TestDispatchRejectsWrongPassword(t *testing.T) {
	d, _ := buildDispatcher(t)
	created := time.Now().UTC().Format(time.RFC3339)
	body := digestEnvelope("admin", "wrongpassword", "MTIzNDU2Nzg5MGFiY2RlZg==", created, "GetDeviceInformation")

	res := Dispatch(context.Background(), d, "/onvif/device_service", []byte(body), "", "")
	assert.Equal(t, http.StatusUnauthorized, res.HTTPStatus)
}

func TestDispatchRejectsUnknownService(t *testing.T) {
	d, _ := buildDispatcher(t)
	created := time.Now().UTC().Format(time.RFC3339)
	body := digestEnvelope("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created, "Whatever")

	res := Dispatch(context.Background(), d, "/onvif/ptz_service", []byte(body), "", "")
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
	assert.Contains(t, res.Body, "ter:ActionNotSupported")
}

func TestDispatchPrefersSOAPActionHeaderOverInferredAction(t *testing.T) {
	d, _ := buildDispatcher(t)
	created := time.Now().UTC().Format(time.RFC3339)
	body := digestEnvelope("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created, "GetDeviceInformation")

	res := Dispatch(context.Background(), d, "/onvif/device_service", []byte(body), `"http://www.onvif.org/ver10/device/wsdl/GetSystemDateAndTime"`, "")
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Contains(t, res.Body, "GetSystemDateAndTimeResponse")
}

func TestDispatchPrefersContentTypeActionOverInferredAction(t *testing.T) {
	d, _ := buildDispatcher(t)
	created := time.Now().UTC().Format(time.RFC3339)
	body := digestEnvelope("admin", "secret", "MTIzNDU2Nzg5MGFiY2RlZg==", created, "GetDeviceInformation")

	res := Dispatch(context.Background(), d, "/onvif/device_service", []byte(body), "",
		`application/soap+xml; charset=utf-8; action="http://www.onvif.org/ver10/device/wsdl/GetSystemDateAndTime"`)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Contains(t, res.Body, "GetSystemDateAndTimeResponse")
}

func TestDispatchAllowsAnonymousOperationWithoutCredentials(t *testing.T) {
	d, _ := buildDispatcher(t)
	body := `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><GetSystemDateAndTime/></s:Body></s:Envelope>`

	res := Dispatch(context.Background(), d, "/onvif/device_service", []byte(body), "", "")
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
}
