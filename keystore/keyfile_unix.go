//go:build !windows

// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keystore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// checkOpenFilePermissions inspects the open handle. A signing key must be
// a regular file owned by the invoking user with no group or other bits.
func checkOpenFilePermissions(f *os.File) error {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil { // #nosec G115
		return fmt.Errorf("failed to stat key file %q: %w", f.Name(), err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return fmt.Errorf(
			"key file %q is not a regular file: %w",
			f.Name(),
			ErrInsecureFileMode,
		)
	}
	// root may read keys on behalf of a service account
	if euid := os.Geteuid(); euid != 0 && st.Uid != uint32(euid) { // #nosec G115
		return fmt.Errorf(
			"key file %q is owned by uid %d, not %d: %w",
			f.Name(),
			st.Uid,
			euid,
			ErrInsecureFileMode,
		)
	}
	if perm := st.Mode & 0o777; perm&0o077 != 0 {
		return fmt.Errorf(
			"key file %q has mode %04o, group/other access not permitted: %w",
			f.Name(),
			perm,
			ErrInsecureFileMode,
		)
	}
	return nil
}
