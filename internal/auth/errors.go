package auth

import "errors"

// errShortToken indicates crypto/rand produced fewer bytes than the
// prefix length requires; unreachable in practice at opaqueTokenBytes=48.
var errShortToken = errors.New("auth: generated token shorter than prefix")

// errWeakPassword is returned by Register when a password fails policy
// (DESIGN.md Open Question: length >= 8 only, no further complexity rules).
var errWeakPassword = errors.New("auth: password does not meet policy")

const minPasswordLength = 8
