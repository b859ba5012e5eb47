package device

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ctxDevice is the gin context key for the authenticated device.
const ctxDevice = "aegis_device"

// RequireDevice returns a Gin middleware that authenticates signed device
// requests. It reads and restores the request body, verifies the
// X-Aegis-Signature header against the enrolled secret, and injects the
// *Device into the context.
func RequireDevice(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.GetHeader(HeaderDeviceID)
		signature := c.GetHeader(HeaderSignature)
		if deviceID == "" || signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "device id and signature headers required",
			})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		d, err := svc.Authenticate(c.Request.Context(), deviceID, signature, body)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown device"})
			case errors.Is(err, ErrDeviceRevoked):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "device revoked"})
			case errors.Is(err, ErrBadSignature):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "device auth failed"})
			}
			return
		}

		c.Set(ctxDevice, d)
		c.Next()
	}
}

// FromCtx retrieves the device injected by RequireDevice. Returns nil when
// the request was not device-authenticated.
func FromCtx(c *gin.Context) *Device {
	v, _ := c.Get(ctxDevice)
	d, _ := v.(*Device)
	return d
}
