package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitfsorg/assetvault/errkind"
	"github.com/bitfsorg/assetvault/token"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error to its HTTP status. Token mismatches are
// distinguished from the rest of their kind.
func statusFor(err error) int {
	if errors.Is(err, token.ErrAssetMismatch) {
		return http.StatusForbidden
	}
	switch errkind.Of(err) {
	case errkind.KindNotFound:
		return http.StatusNotFound
	case errkind.KindValidation:
		return http.StatusBadRequest
	case errkind.KindToken:
		return http.StatusUnauthorized
	case errkind.KindBackend:
		return http.StatusBadGateway
	default:
		// Integrity and configuration failures land here too.
		return http.StatusInternalServerError
	}
}

// abortWithError writes err as JSON. Integrity and configuration details
// are not echoed to the client.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	kind := errkind.Of(err)
	msg := err.Error()
	if kind == errkind.KindIntegrity || kind == errkind.KindConfiguration || kind == errkind.KindUnknown {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Kind: kind.String()})
}
