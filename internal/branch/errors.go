package branch

import "errors"

// ErrUnknownBranch is returned when a code is not in the directory.
var ErrUnknownBranch = errors.New("unknown branch")
