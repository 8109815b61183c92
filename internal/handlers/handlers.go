package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/facebox/internal/imageloader"
	"github.com/example/facebox/internal/logging"
	"github.com/example/facebox/internal/usecase"
)

// NewRouter builds the Gin engine with recovery, 404/405 shaping, and the
// detection routes wired in.
func NewRouter(uc *usecase.DetectionUseCase, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	RegisterRoutes(router, uc, logger)
	return router
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.DetectionUseCase, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/detect_largest_face", detectLargestFace(uc, logger))
}

func detectLargestFace(uc *usecase.DetectionUseCase, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		opLogger := logging.WithRequest(logger.Named("detect_largest_face"), requestID)

		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			opLogger.Error("failed to read request body", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if len(data) == 0 {
			opLogger.Warn("request data is missing")
			c.JSON(http.StatusBadRequest, gin.H{"error": "No data found, make sure to set Content-Type"})
			return
		}

		upsampleArg := c.DefaultQuery("upsample", "0")
		upsample, err := strconv.Atoi(upsampleArg)
		if err != nil {
			opLogger.Warn("invalid upsample argument given", zap.String("upsample", upsampleArg))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid numeric value for upsample argument"})
			return
		}
		if upsample < 0 {
			opLogger.Warn("negative number provided for upsample", zap.Int("upsample", upsample))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Value for upsample argument must be nonnegative"})
			return
		}

		opLogger.Info("running detection",
			zap.Int("data_length", len(data)),
			zap.Int("upsample", upsample))

		box, err := uc.FindLargestFace(c.Request.Context(), imageloader.Source{Data: data}, upsample)
		if err != nil {
			respondDetectionError(c, opLogger, requestID, upsample, len(data), err)
			return
		}

		if box == nil {
			opLogger.Info("did not find a face")
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		opLogger.Info("found a face")
		c.JSON(http.StatusOK, gin.H{"box": box})
	}
}

func respondDetectionError(c *gin.Context, opLogger *zap.Logger, requestID string, upsample, dataLen int, err error) {
	var invalid *imageloader.InvalidImageError
	var tooLarge *usecase.TooLargeError
	switch {
	case errors.As(err, &invalid):
		opLogger.Warn("invalid image", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "The image is invalid"})
	case errors.As(err, &tooLarge):
		opLogger.Warn("image too large",
			zap.Int("height", tooLarge.Height),
			zap.Int("width", tooLarge.Width))
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLarge.Error()})
	default:
		wrapped := logging.NewDetectionError("detect_largest_face", requestID, upsample, dataLen, err)
		opLogger.Error("detection failed", zap.Error(wrapped))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
