package tracking

import "errors"

// ErrNotFound marks a lookup for an entity that does not exist in the
// tenant's database. Handlers translate it to a 404.
var ErrNotFound = errors.New("not found")

// ErrValidation marks a structurally invalid client payload. Handlers
// translate it to a 400.
var ErrValidation = errors.New("validation failed")

// ErrSignature marks a webhook whose HMAC signature does not match the
// tenant's shared secret. Handlers translate it to a 401.
var ErrSignature = errors.New("invalid signature")
