package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/middleware"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
)

// CommandQueue is the user and device facing command queue
type CommandQueue interface {
	EnqueueCommand(ctx context.Context, userID string, req api_models.EnqueueCommandRequest) (*pdsmodels.Command, error)
	Snooze(ctx context.Context, userID string, req api_models.SnoozeRequest) api_models.SnoozeOutcome
	PendingCommands(ctx context.Context, serial, secret string, limit int) ([]pdsmodels.Command, error)
	AcknowledgeCommand(ctx context.Context, serial, secret, commandID string) (*pdsmodels.Command, error)
}

// CommandController handles command creation by users and consumption by devices
type CommandController struct {
	queue          CommandQueue
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

func NewCommandController(queue CommandQueue, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *CommandController {
	return &CommandController{
		queue:          queue,
		logger:         logger,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the command routes with Gin
func (c *CommandController) RegisterRoutes(router *gin.Engine) {
	router.POST("/commands", c.authMiddleware.Authenticate(), c.EnqueueCommand)
	router.POST("/notifications/snooze", c.authMiddleware.Authenticate(), c.Snooze)

	devices := router.Group("/devices/commands")
	{
		devices.POST("/pending", c.PendingCommands)
		devices.POST("/:command_id/ack", c.AcknowledgeCommand)
	}
}

func (c *CommandController) EnqueueCommand(ctx *gin.Context) {
	userID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req api_models.EnqueueCommandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "deviceId and type are required"})
		return
	}

	cmd, err := c.queue.EnqueueCommand(ctx.Request.Context(), userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, cmd)
}

func (c *CommandController) Snooze(ctx *gin.Context) {
	userID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	// a malformed body still gets the navigation effect, with the
	// missing device reported in the notice
	var req api_models.SnoozeRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			c.logger.Logger.Debug().Err(err).Str("user_id", userID).Msg("Snooze body not bound, using query parameters")
		}
	}
	if req.DeviceID == "" {
		req.DeviceID = ctx.Query("deviceId")
	}
	if v, ok := ctx.GetQuery("compartmentId"); ok && req.CompartmentID == nil {
		req.CompartmentID = &v
	}
	if v, ok := ctx.GetQuery("scheduledAt"); ok && req.ScheduledAt == nil {
		req.ScheduledAt = &v
	}

	ctx.JSON(http.StatusOK, c.queue.Snooze(ctx.Request.Context(), userID, req))
}

func (c *CommandController) PendingCommands(ctx *gin.Context) {
	var req api_models.PendingCommandsRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid fields"})
			return
		}
	}
	credentialsFromHeaders(ctx, &req.DeviceCredentials)

	cmds, err := c.queue.PendingCommands(ctx.Request.Context(), req.Serial, req.Secret, req.Limit)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": cmds})
}

func (c *CommandController) AcknowledgeCommand(ctx *gin.Context) {
	var creds api_models.DeviceCredentials
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&creds); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid fields"})
			return
		}
	}
	credentialsFromHeaders(ctx, &creds)

	cmd, err := c.queue.AcknowledgeCommand(ctx.Request.Context(), creds.Serial, creds.Secret, ctx.Param("command_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, cmd)
}
