package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
)

// TelemetryRecorder ingests device telemetry
type TelemetryRecorder interface {
	RecordDoseEvent(ctx context.Context, req api_models.DoseEventRequest) (*pdsmodels.DoseEvent, error)
	RecordWeightReadings(ctx context.Context, req api_models.WeightBatchRequest) (int, error)
}

// TelemetryController handles device-originated dose events and weight batches
type TelemetryController struct {
	recorder TelemetryRecorder
	logger   *logger.Logger
}

func NewTelemetryController(recorder TelemetryRecorder, logger *logger.Logger) *TelemetryController {
	return &TelemetryController{
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes registers the telemetry routes with Gin
func (c *TelemetryController) RegisterRoutes(router *gin.Engine) {
	router.POST("/events/dose", c.RecordDoseEvent)
	router.POST("/weights/bulk", c.RecordWeightReadings)
}

func (c *TelemetryController) RecordDoseEvent(ctx *gin.Context) {
	var req api_models.DoseEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	credentialsFromHeaders(ctx, &req.DeviceCredentials)

	event, err := c.recorder.RecordDoseEvent(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (c *TelemetryController) RecordWeightReadings(ctx *gin.Context) {
	var req api_models.WeightBatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid fields"})
		return
	}
	credentialsFromHeaders(ctx, &req.DeviceCredentials)

	inserted, err := c.recorder.RecordWeightReadings(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.WeightBatchResponse{InsertedCount: inserted, Inserted: inserted})
}
