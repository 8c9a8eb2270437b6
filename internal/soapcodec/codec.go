// Package soapcodec parses SOAP 1.2 envelopes off the wire and builds the
// response and fault envelopes the engine sends back.
package soapcodec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	SoapEnvelopeNS = "http://www.w3.org/2003/05/soap-envelope"
	WsseNS         = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	WsuNS          = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	TdsNS          = "http://www.onvif.org/ver10/device/wsdl"
	TrtNS          = "http://www.onvif.org/ver10/media/wsdl"
	PtzNS          = "http://www.onvif.org/ver20/ptz/wsdl"
	ImgNS          = "http://www.onvif.org/ver20/imaging/wsdl"
	TtNS           = "http://www.onvif.org/ver10/schema"
	TerNS          = "http://www.onvif.org/ver10/error"
)

var (
	ErrMissingEnvelope = errors.New("missing SOAP envelope")
	ErrMissingBody     = errors.New("missing body")
)

// XMLError reports a malformed document with the byte offset where the
// decoder gave up.
type XMLError struct {
	Position int64
	Detail   string
}

func (e *XMLError) Error() string {
	return fmt.Sprintf("xml error at position %d: %s", e.Position, e.Detail)
}

// UsernameToken is the WS-Security credential block carried in the SOAP
// header, if present.
type UsernameToken struct {
	Username       string
	Password       string
	PasswordType   string
	Nonce          string
	NonceEncoding  string
	Created        string
	HasNonce       bool
	HasCreated     bool
}

// Envelope is the immutable record C1 hands to the dispatcher: the optional
// credential header, the raw body of the first child element, and the
// action inferred from its local name.
type Envelope struct {
	Header         *UsernameToken
	BodyXML        string
	InferredAction string
}

// Parse runs a single-pass streaming parse over a SOAP 1.2 request. Namespace
// prefixes are ignored for element matching; only local names are compared,
// so both wsse:/wsu: prefixed and unprefixed UsernameToken elements parse
// identically.
func Parse(data []byte) (*Envelope, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		header         *UsernameToken
		body           strings.Builder
		inHeader       bool
		inSecurity     bool
		inToken        bool
		inBody         bool
		bodyDepth      int
		action         string
		currentElement string
		pendingToken   UsernameToken
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &XMLError{Position: dec.InputOffset(), Detail: err.Error()}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case name == "Body" && !inBody:
				inBody = true
				inHeader = false
				bodyDepth = 0
			case name == "Header" && !inBody:
				inHeader = true
			case name == "Security" && inHeader:
				inSecurity = true
			case name == "UsernameToken" && inSecurity:
				inToken = true
				pendingToken = UsernameToken{}
			case inToken:
				currentElement = name
				if name == "Password" {
					if attr := findAttr(t.Attr, "Type"); attr != "" {
						pendingToken.PasswordType = attr
					}
				} else if name == "Nonce" {
					if attr := findAttr(t.Attr, "EncodingType"); attr != "" {
						pendingToken.NonceEncoding = attr
					}
					pendingToken.HasNonce = true
				} else if name == "Created" {
					pendingToken.HasCreated = true
				}
			case inBody:
				bodyDepth++
				writeStartTag(&body, name, t.Attr)
				if bodyDepth == 1 && action == "" {
					action = name
				}
			}

		case xml.EndElement:
			name := t.Name.Local
			switch {
			case name == "Body" && inBody && bodyDepth == 0:
				inBody = false
			case name == "Header" && inHeader:
				inHeader = false
			case name == "Security" && inSecurity:
				inSecurity = false
			case name == "UsernameToken" && inToken:
				inToken = false
				tok := pendingToken
				header = &tok
			case inToken:
				currentElement = ""
			case inBody:
				body.WriteString("</")
				body.WriteString(name)
				body.WriteString(">")
				if bodyDepth > 0 {
					bodyDepth--
				}
			}

		case xml.CharData:
			text := string(t)
			if inBody {
				xml.EscapeText(&body, t)
			} else if inToken && currentElement != "" {
				switch currentElement {
				case "Username":
					pendingToken.Username = text
				case "Password":
					pendingToken.Password = text
				case "Nonce":
					pendingToken.Nonce = text
				case "Created":
					pendingToken.Created = text
				}
			}
		}
	}

	if body.Len() == 0 {
		return nil, ErrMissingBody
	}

	return &Envelope{
		Header:         header,
		BodyXML:        body.String(),
		InferredAction: action,
	}, nil
}

func findAttr(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func writeStartTag(b *strings.Builder, name string, attrs []xml.Attr) {
	b.WriteString("<")
	b.WriteString(name)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		xml.EscapeText(b, []byte(a.Value))
		b.WriteString(`"`)
	}
	b.WriteString(">")
}

// BuildResponse wraps bodyXML in a SOAP 1.2 envelope declaring the six ONVIF
// namespaces with stable prefixes, as required for ODM/NVR clients that
// expect those exact prefixes on response children.
func BuildResponse(bodyXML string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="%s" xmlns:tt="%s" xmlns:tds="%s" xmlns:trt="%s" xmlns:tptz="%s" xmlns:timg="%s">
  <s:Body>
    %s
  </s:Body>
</s:Envelope>`, SoapEnvelopeNS, TtNS, TdsNS, TrtNS, PtzNS, ImgNS, bodyXML)
}

// BuildFault builds a SOAP fault envelope. code must be "s:Sender" or
// "s:Receiver"; subcode is a ter:* qualified value; reason is the English
// human-readable text. The fault's HTTP status is not decided here.
func BuildFault(code, subcode, reason string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="%s" xmlns:ter="%s">
  <s:Body>
    <s:Fault>
      <s:Code>
        <s:Value>%s</s:Value>
        <s:Subcode>
          <s:Value>%s</s:Value>
        </s:Subcode>
      </s:Code>
      <s:Reason>
        <s:Text xml:lang="en">%s</s:Text>
      </s:Reason>
    </s:Fault>
  </s:Body>
</s:Envelope>`, SoapEnvelopeNS, TerNS, code, subcode, escapeText(reason))
}

func escapeText(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
