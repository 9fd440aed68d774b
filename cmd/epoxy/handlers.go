package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/epoxy/pkg/aggregate"
	"github.com/Sternrassler/epoxy/pkg/client"
	"github.com/Sternrassler/epoxy/pkg/logging"
	"github.com/Sternrassler/epoxy/pkg/metrics"
	"github.com/Sternrassler/epoxy/pkg/request"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ErrorResponse is the body of every non-aggregate response.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// newRouter wires the HTTP surface.
func newRouter(service string, aggregator *aggregate.Aggregator, defaultTimeout time.Duration, shuttingDown *atomic.Bool) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(service),
		requestIDMiddleware(),
		accessLogMiddleware(),
	)

	router.GET("/health", healthHandler)
	router.GET("/ready", readyHandler(shuttingDown))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// The encoded endpoint list may contain '/' (standard base64), so the
	// shape is split off a catch-all path.
	router.GET("/v1/fetch/*path", fetchHandler(aggregator, defaultTimeout))

	return router
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func readyHandler(shuttingDown *atomic.Bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if shuttingDown.Load() {
			c.String(http.StatusServiceUnavailable, "shutting down")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

func fetchHandler(aggregator *aggregate.Aggregator, defaultTimeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		apis, shape, ok := splitFetchPath(c.Param("path"))
		if !ok {
			writeError(c, http.StatusNotFound, "Not Found")
			return
		}

		params := request.Params{
			APIs:   apis,
			Errors: c.Query("errors"),
		}
		if raw, present := c.GetQuery("timeout"); present {
			timeout, err := strconv.Atoi(raw)
			if err != nil {
				writeError(c, http.StatusBadRequest, request.MsgInvalidTimeout)
				return
			}
			params.Timeout = &timeout
		}

		req, err := request.Decode(params, defaultTimeout)
		if err != nil {
			handleError(c, err)
			return
		}

		ctx := c.Request.Context()
		switch shape {
		case aggregate.ShapeCombined:
			combined, err := aggregator.Combined(ctx, req)
			if err != nil {
				handleError(c, err)
				return
			}
			c.JSON(http.StatusOK, combined)
		default:
			appended, err := aggregator.Appended(ctx, req)
			if err != nil {
				handleError(c, err)
				return
			}
			c.JSON(http.StatusOK, appended)
		}
	}
}

// splitFetchPath splits "/{apis}/{shape}" into its parts.
func splitFetchPath(path string) (apis, shape string, ok bool) {
	path = strings.TrimPrefix(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", "", false
	}

	apis, shape = path[:idx], path[idx+1:]
	if shape != aggregate.ShapeCombined && shape != aggregate.ShapeAppended {
		return "", "", false
	}
	return apis, shape, true
}

// handleError translates errors at the boundary. A fail_any abort is an
// expected outcome and answers 200.
func handleError(c *gin.Context, err error) {
	logger := logging.FromContext(c.Request.Context())

	var bad *request.BadRequestError
	switch {
	case errors.As(err, &bad):
		logger.Debug().Err(err).Msg("Rejected request")
		writeError(c, http.StatusBadRequest, bad.Message)
	case errors.Is(err, client.ErrInvalidPolicy):
		writeError(c, http.StatusBadRequest, request.MsgInvalidErrorType)
	case errors.Is(err, client.ErrAggregationFailed):
		writeError(c, http.StatusOK, client.FailedMarker)
	default:
		logger.Error().Err(err).Msg("Aggregation error")
		writeError(c, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{StatusCode: status, Message: message})
}
