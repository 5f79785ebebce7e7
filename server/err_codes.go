package server

import "canvastrmnl/errors"

// Reasons returned in the data field of a failed procedure.
const (
	reasonTrmnl             = "trmnlError"
	reasonDatabaseInsert    = "databaseInsertError"
	reasonDatabaseQuery     = "databaseQueryError"
	reasonAuthentication    = "authenticationError"
	reasonAuthorization     = "authorizationError"
	reasonConsumerNotFound  = "consumerNotFoundError"
	reasonInvalidURL        = "invalidUrlError"
	reasonInvalidJSON       = "invalidJSONObject"
	reasonProcedureSchema   = "procedureSchemaValidationError"
	reasonProcedureNotFound = "procedureNotFound"
	reasonSchemaValidation  = "schemaValidationError"
)

// Messages shown on the device when a screen cannot be generated.
const (
	msgNoCanvasCredentials = "Add a Canvas token and domain to see your assignments."
	msgFetchFailed         = "Contact support. Failed to fetch canvas data: %s."
)

var (
	errInvalidAuth = errors.NewError("server", errors.ErrInvalidAuth.Error(), nil)
	errIncomplete  = errors.NewError("server", errors.ErrIncompleteCreds.Error(), nil)
)
