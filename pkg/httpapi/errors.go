package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

var errMalformedToken = errors.New("malformed bearer token")

func errAuthMissing() *apperrors.Error {
	return apperrors.New(apperrors.KindAuth, "missing bearer token")
}

func errAuthInvalid() *apperrors.Error {
	return apperrors.New(apperrors.KindAuth, "invalid bearer token")
}

func errValidation(details map[string]any) *apperrors.Error {
	return apperrors.New(apperrors.KindValidation, "request failed validation").WithDetails(details)
}

func errNotFound(what string) *apperrors.Error {
	return apperrors.New(apperrors.KindNotFound, what+" not found")
}

// writeError renders err as the §6/§7 envelope and aborts the gin
// context. A QUOTA kind also sets Retry-After, and an INTERNAL kind is
// logged with its generated error_id but never leaks details to the
// client.
func writeError(c *gin.Context, err error) {
	ae := apperrors.Of(err)

	if ae.Kind == apperrors.KindQuota || ae.Kind == apperrors.KindServiceUnavailable {
		c.Header("Retry-After", "60")
	}
	if ae.Kind == apperrors.KindInternal {
		c.Error(ae)
	}

	env := ae.ToEnvelope()
	if ae.Kind == apperrors.KindInternal {
		env.Details = nil
	}

	c.AbortWithStatusJSON(apperrors.HTTPStatus(ae.Kind), env)
}

// writeDegraded renders a 200 response that carries the §7 DEGRADED_OK
// marker: an x-degraded header plus a degraded flag in the body.
func writeDegraded(c *gin.Context, body gin.H, reason string) {
	c.Header("x-degraded", "true")
	if body == nil {
		body = gin.H{}
	}
	body["degraded"] = true
	body["degraded_reason"] = reason
	c.JSON(http.StatusOK, body)
}
