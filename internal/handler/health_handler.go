package handler

import (
	"context"

	"rcmos/commons/error_handler"
	"rcmos/commons/handler"
	"rcmos/internal/dto"
	"rcmos/internal/logger"
)

type HealthHandler struct {
	logger      logger.Logger
	serviceName string
	info        dto.InfoResponse
	version     string
}

func NewHealthHandler(log logger.Logger, serviceName string, info dto.InfoResponse, version string) *HealthHandler {
	return &HealthHandler{
		logger:      log.With(logger.String("component", "health_handler")),
		serviceName: serviceName,
		info:        info,
		version:     version,
	}
}

func (h *HealthHandler) HealthService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.HealthResponse, *error_handler.ErrorCollection) {
	h.logger.Debug("health check requested")

	return dto.HealthResponse{
		Status:  "ok",
		Service: h.serviceName,
	}, nil
}

func (h *HealthHandler) InfoService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.InfoResponse, *error_handler.ErrorCollection) {
	return h.info, nil
}

func (h *HealthHandler) VersionService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.VersionResponse, *error_handler.ErrorCollection) {
	return dto.VersionResponse{Version: h.version}, nil
}
