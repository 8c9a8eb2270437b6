package onviferr

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultMapping(t *testing.T) {
	cases := []struct {
		kind       Kind
		wantSub    string
		wantStatus int
	}{
		{ActionNotSupported, "ter:ActionNotSupported", http.StatusBadRequest},
		{WellFormed, "ter:WellFormed", http.StatusBadRequest},
		{NotFound, "ter:NotFound", http.StatusNotFound},
		{ConfigurationConflict, "ter:ConfigurationConflict", http.StatusConflict},
		{NotAuthorized, "ter:NotAuthorized", http.StatusUnauthorized},
		{MaxUsers, "ter:MaxUsers", http.StatusForbidden},
		{HardwareFailure, "ter:HardwareFailure", http.StatusInternalServerError},
		{Internal, "ter:InternalError", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		e := New(tc.kind, "boom")
		assert.Equal(t, tc.wantStatus, e.HTTPStatus())
		assert.Contains(t, e.SOAPFault(), tc.wantSub)
	}
}

func TestInvalidArgSubcode(t *testing.T) {
	e := InvalidArg("InvalidVideoSourceTokenToken", "unknown token")
	assert.Contains(t, e.SOAPFault(), "ter:InvalidArgVal/InvalidVideoSourceTokenToken")
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
}
