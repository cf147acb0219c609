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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func currentUserSID(t *testing.T) string {
	t.Helper()
	var token windows.Token
	require.NoError(t, windows.OpenProcessToken(
		windows.CurrentProcess(),
		windows.TOKEN_QUERY,
		&token,
	))
	defer token.Close()
	tokenUser, err := token.GetTokenUser()
	require.NoError(t, err)
	return tokenUser.User.Sid.String()
}

func applySDDL(t *testing.T, path string, sddl string, protected bool) {
	t.Helper()
	sd, err := windows.SecurityDescriptorFromString(sddl)
	require.NoError(t, err)
	dacl, _, err := sd.DACL()
	require.NoError(t, err)
	info := windows.SECURITY_INFORMATION(windows.DACL_SECURITY_INFORMATION)
	if protected {
		info |= windows.PROTECTED_DACL_SECURITY_INFORMATION
	}
	require.NoError(t, windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		info,
		nil, nil, dacl, nil,
	))
}

func TestCheckFilePermissionsWindows(t *testing.T) {
	tests := []struct {
		name    string
		sddl    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "everyone",
			sddl:    func(*testing.T) string { return "D:(A;;GR;;;WD)" },
			wantErr: "Everyone",
		},
		{
			name:    "builtin users",
			sddl:    func(*testing.T) string { return "D:(A;;GR;;;BU)" },
			wantErr: "BUILTIN\\Users",
		},
		{
			name:    "authenticated users",
			sddl:    func(*testing.T) string { return "D:(A;;GR;;;AU)" },
			wantErr: "Authenticated Users",
		},
		{
			name: "owner only",
			sddl: func(t *testing.T) string {
				return fmt.Sprintf("D:P(A;;GA;;;%s)", currentUserSID(t))
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ballot.skey")
			require.NoError(t, os.WriteFile(path, []byte("test"), 0o600))
			applySDDL(t, path, test.sddl(t), test.wantErr == "")
			err := checkFilePermissions(path)
			if test.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInsecureFileMode)
			assert.Contains(t, err.Error(), test.wantErr)
		})
	}
}
