// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// fatalErrnos are the ReadDirectoryChangesW failures a watcher cannot
// recover from: ERROR_TOO_MANY_OPEN_FILES, ERROR_INVALID_HANDLE (the
// directory went away) and ERROR_NOT_ENOUGH_MEMORY.
var fatalErrnos = []syscall.Errno{4, 6, 8}
