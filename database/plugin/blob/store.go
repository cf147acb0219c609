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

package blob

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/blinklabs-io/ballot/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

// BlobStore is a transactional key/value store. Read-write transactions must
// be serializable: a commit fails with types.ErrTxnConflict when any key the
// transaction read was changed by another commit in the meantime.
type BlobStore interface {
	Close() error
	NewTransaction(bool) types.Txn
	Get(types.Txn, []byte) ([]byte, error)
	Set(types.Txn, []byte, []byte) error
	Delete(types.Txn, []byte) error
	NewIterator(types.Txn, types.BlobIteratorOptions) types.BlobIterator
}

// New returns the started blob plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (BlobStore, error) {
	p, err := plugin.StartPlugin(
		plugin.PluginTypeBlob,
		pluginName,
		logger,
		promRegistry,
	)
	if err != nil {
		return nil, err
	}
	blobStore, ok := p.(BlobStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement BlobStore interface",
			pluginName,
		)
	}
	return blobStore, nil
}
