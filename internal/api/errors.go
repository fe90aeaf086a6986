package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/reputation/internal/ledger"
)

var statusByCode = map[string]int{
	"not_found":                          http.StatusNotFound,
	"response_not_found":                 http.StatusNotFound,
	"agent_not_found":                    http.StatusNotFound,
	"unauthorized":                       http.StatusForbidden,
	"feedback_auth_required":             http.StatusForbidden,
	"feedback_auth_client_mismatch":      http.StatusForbidden,
	"feedback_auth_expired":              http.StatusForbidden,
	"feedback_auth_index_limit_exceeded": http.StatusForbidden,
	"unauthorized_signer":                http.StatusForbidden,
	"invalid_feedback_auth_signature":    http.StatusForbidden,
	"wrong_index":                        http.StatusConflict,
	"duplicate_feedback":                 http.StatusConflict,
	"already_revoked":                    http.StatusConflict,
	"conflict":                           http.StatusConflict,
	"invalid_score":                      http.StatusBadRequest,
	"uri_too_long":                       http.StatusBadRequest,
	"response_uri_too_long":              http.StatusBadRequest,
}

// statusFor maps a ledger error to its HTTP status. Overflow, underflow and
// anything unrecognised are server errors.
func statusFor(err error) (int, string) {
	code := ledger.Code(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, code
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal errors are logged, not returned.
		msg = http.StatusText(status)
	}
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}
