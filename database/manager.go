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

package database

import (
	"github.com/blinklabs-io/gouroboros/cbor"
)

// ManagerConfig is the stored configuration of a named upgrade manager
type ManagerConfig struct {
	cbor.StructAsArray
	Admin          string
	Validators     []string
	Threshold      uint32
	NextProposalID uint64
}

// GetManagerConfig returns the config of the named manager, or nil if it has
// not been initialized
func (d *Database) GetManagerConfig(
	name string,
	txn *Txn,
) (*ManagerConfig, error) {
	var ret ManagerConfig
	found, err := d.getRecord(managerConfigKey(name), &ret, txn)
	if err != nil || !found {
		return nil, err
	}
	return &ret, nil
}

func (d *Database) SetManagerConfig(
	name string,
	cfg *ManagerConfig,
	txn *Txn,
) error {
	return d.setRecord(managerConfigKey(name), cfg, txn)
}
