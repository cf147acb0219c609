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

package plugin_test

import (
	"testing"

	"github.com/blinklabs-io/ballot/database/plugin"
	_ "github.com/blinklabs-io/ballot/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/ballot/database/plugin/metadata/sqlite"
	"github.com/stretchr/testify/require"
)

// These tests mutate global plugin state, so they must not run in parallel
func TestSetPluginOptionSuccessAndTypeCheck(t *testing.T) {
	// Empty data-dir means in-memory
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", ""))

	// Wrong type
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", 123))

	// Unknown options are a no-op
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "does-not-exist", "x"))

	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", t.TempDir()))

	// Uint options accept uint64 and non-negative int
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "block-cache-size", uint64(100000000)))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "block-cache-size", 1000))
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "block-cache-size", -1))

	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "gc", true))

	// Plugin not found
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "nonexistent", "data-dir", t.TempDir()))

	// Restore in-memory defaults for any later test in this package
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", ""))
}
