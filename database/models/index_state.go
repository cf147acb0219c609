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

package models

// IndexStateID is the primary key of the single index state row
const IndexStateID = 1

// IndexState tracks the last ledger height applied to the index
type IndexState struct {
	ID     uint `gorm:"primarykey"`
	Height uint64
}

func (IndexState) TableName() string {
	return "index_state"
}
