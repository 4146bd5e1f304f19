package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	pdserrors "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Errors"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
)

// AlarmDispatcher sends alarm notifications
type AlarmDispatcher interface {
	DispatchAlarm(ctx context.Context, req api_models.AlarmStartRequest) (*pdsmodels.PushResult, error)
}

// AlarmController handles alarm triggers from devices
type AlarmController struct {
	dispatcher AlarmDispatcher
	logger     *logger.Logger
}

func NewAlarmController(dispatcher AlarmDispatcher, logger *logger.Logger) *AlarmController {
	return &AlarmController{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterRoutes registers the alarm routes with Gin
func (c *AlarmController) RegisterRoutes(router *gin.Engine) {
	router.POST("/alarms/start", c.StartAlarm)
}

func (c *AlarmController) StartAlarm(ctx *gin.Context) {
	var req api_models.AlarmStartRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	credentialsFromHeaders(ctx, &req.DeviceCredentials)

	result, err := c.dispatcher.DispatchAlarm(ctx.Request.Context(), req)
	if err != nil {
		// collaborator failures keep the success/notificationsSent shape
		if pdserrors.KindOf(err) == pdserrors.KindCollaborator {
			ctx.JSON(http.StatusBadGateway, api_models.AlarmStartResponse{
				Success:           false,
				NotificationsSent: 0,
				Error:             err.Error(),
			})
			return
		}
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.AlarmStartResponse{
		Success:           true,
		NotificationsSent: result.Sent,
		Failed:            result.Failed,
	})
}
