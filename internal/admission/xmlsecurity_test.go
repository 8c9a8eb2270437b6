package admission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLFilterAcceptsCleanSOAP(t *testing.T) {
	f := NewXMLFilter(0, 0)
	body := `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><GetDeviceInformation/></s:Body></s:Envelope>`
	assert.Nil(t, f.Validate([]byte(body)))
}

func TestXMLFilterRejectsOversizedPayload(t *testing.T) {
	f := NewXMLFilter(10, 0)
	v := f.Validate([]byte("this is far more than ten bytes"))
	require.NotNil(t, v)
	assert.Equal(t, ThreatPayloadTooLarge, v.Threat)
}

func TestXMLFilterRejectsEntityDeclaration(t *testing.T) {
	f := NewXMLFilter(0, 0)
	body := `<?xml version="1.0"?><!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///etc/passwd">]><foo>&xxe;</foo>`
	v := f.Validate([]byte(body))
	require.NotNil(t, v)
	assert.Equal(t, ThreatXXE, v.Threat)
}

func TestXMLFilterRejectsBareDoctypeWithoutExternalReference(t *testing.T) {
	f := NewXMLFilter(0, 0)
	body := `<?xml version="1.0"?><!DOCTYPE foo><foo>bar</foo>`
	v := f.Validate([]byte(body))
	require.NotNil(t, v)
	assert.Equal(t, ThreatXXE, v.Threat)
	assert.Contains(t, v.Detail, "DOCTYPE")
}

func TestXMLFilterRejectsFileScheme(t *testing.T) {
	f := NewXMLFilter(0, 0)
	body := `<foo>file:///etc/passwd</foo>`
	v := f.Validate([]byte(body))
	require.NotNil(t, v)
	assert.Equal(t, ThreatXXE, v.Threat)
}

func TestXMLFilterRejectsEntityBomb(t *testing.T) {
	f := NewXMLFilter(0, 3)
	body := "<foo>" + strings.Repeat("&lol;", 10) + "</foo>"
	v := f.Validate([]byte(body))
	require.NotNil(t, v)
	assert.Equal(t, ThreatXMLBomb, v.Threat)
}

func TestXMLFilterIgnoresPredefinedEntities(t *testing.T) {
	f := NewXMLFilter(0, 3)
	body := `<foo>&amp; &lt; &gt; &quot; &apos;</foo>`
	assert.Nil(t, f.Validate([]byte(body)))
}

func TestValidatePathAcceptsOrdinaryServicePath(t *testing.T) {
	assert.NoError(t, ValidatePath("/onvif/device_service"))
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	for _, path := range []string{
		"/onvif/../../../etc/passwd",
		"/onvif/device_service/..",
		"/onvif/..\\device_service",
		"/onvif/%2e%2e/device_service",
		"/onvif/%252e%252e/device_service",
	} {
		assert.Error(t, ValidatePath(path), "expected rejection for %q", path)
	}
}

func TestValidatePathRejectsNullByteAndBackslash(t *testing.T) {
	assert.Error(t, ValidatePath("/onvif/device_service\x00"))
	assert.Error(t, ValidatePath(`\onvif\device_service`))
}
