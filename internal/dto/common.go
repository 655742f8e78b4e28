package dto

// EmptyRequest is used by routes that carry everything in path or query params.
type EmptyRequest struct{}
