package preload

import "errors"

// Errors returned synchronously by Client.Request and Client.RequestFrom.
// Transport errors are never wrapped: they are returned as-is by the response handle.
var (
	ErrInvalidMethod = errors.New("preload: invalid method")
	ErrInvalidURL    = errors.New("preload: invalid URL")
)
