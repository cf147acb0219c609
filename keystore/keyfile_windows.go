//go:build windows

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
	"strings"

	"golang.org/x/sys/windows"
)

// untrustedTrustees maps SDDL trustees to group names. A key file must not
// grant any of them access.
var untrustedTrustees = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// NTFS does not allow replacing an open file, so checking by name is safe.
func checkOpenFilePermissions(f *os.File) error {
	return checkFilePermissions(f.Name())
}

// checkFilePermissions reads the file DACL as SDDL. The descriptor is
// never freed since that requires unsafe (go.dev/issue/73199).
func checkFilePermissions(path string) error {
	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf(
			"failed to get security info for %q: %w",
			path,
			err,
		)
	}
	sddl := sd.String()
	if sddl == "" {
		return fmt.Errorf(
			"failed to read security descriptor for %q",
			path,
		)
	}
	return checkSDDL(path, sddl)
}

func checkSDDL(path string, sddl string) error {
	_, dacl, ok := strings.Cut(sddl, "D:")
	if !ok {
		return fmt.Errorf(
			"key file %q has no DACL: %w",
			path,
			ErrInsecureFileMode,
		)
	}
	dacl, _, _ = strings.Cut(dacl, "S:")
	for _, ace := range daclEntries(dacl) {
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		if name, ok := untrustedTrustees[fields[5]]; ok {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
	return nil
}

// daclEntries returns the parenthesized ACE strings of a DACL
func daclEntries(dacl string) []string {
	var ret []string
	for {
		_, rest, ok := strings.Cut(dacl, "(")
		if !ok {
			return ret
		}
		ace, remaining, ok := strings.Cut(rest, ")")
		if !ok {
			return ret
		}
		ret = append(ret, ace)
		dacl = remaining
	}
}
