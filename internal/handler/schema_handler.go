package handler

import (
	"context"

	"rcmos/commons/error_handler"
	"rcmos/commons/handler"
	"rcmos/internal/dto"
	"rcmos/internal/schemas"
)

type SchemaHandler struct {
	catalog schemas.Catalog
}

func NewSchemaHandler(catalog schemas.Catalog) *SchemaHandler {
	return &SchemaHandler{catalog: catalog}
}

func (h *SchemaHandler) ListSchemasService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (schemas.Catalog, *error_handler.ErrorCollection) {
	return h.catalog, nil
}
