package shared

import "errors"

// ErrInvalidCredentials indicates login failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SystemActor is recorded on rows written outside of a user session,
// for example by seed scripts or background jobs.
const SystemActor = "system"
