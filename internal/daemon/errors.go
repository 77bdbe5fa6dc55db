// SPDX-License-Identifier: MIT

package daemon

import "errors"

// ErrNotStarted is returned by Shutdown before Start has run.
var ErrNotStarted = errors.New("daemon manager not started")
