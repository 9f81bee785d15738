package common

// AuthorizationHeaderName carries the bearer credential on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is echoed back on every HTTP response.
const RequestIDHeaderName = "X-Request-ID"

// DefaultMimeType is stored when the uploader does not supply one.
const DefaultMimeType = "application/octet-stream"
