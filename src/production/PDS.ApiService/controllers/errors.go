package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pdserrors "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Errors"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
)

const (
	SerialHeader = "x-device-serial"
	SecretHeader = "x-device-secret"
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch pdserrors.KindOf(err) {
	case pdserrors.KindValidation:
		return http.StatusBadRequest
	case pdserrors.KindDeviceNotFound, pdserrors.KindNotFound:
		return http.StatusNotFound
	case pdserrors.KindInvalidCredentials:
		return http.StatusUnauthorized
	case pdserrors.KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(ctx *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if pdserrors.KindOf(err) == pdserrors.KindUnknown {
		msg = "internal error"
	}
	ctx.JSON(status, gin.H{"error": msg})
}

// credentialsFromHeaders fills missing body credentials from the device headers
func credentialsFromHeaders(ctx *gin.Context, creds *api_models.DeviceCredentials) {
	if creds.Serial == "" {
		creds.Serial = ctx.GetHeader(SerialHeader)
	}
	if creds.Secret == "" {
		creds.Secret = ctx.GetHeader(SecretHeader)
	}
}
