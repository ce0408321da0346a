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
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tollgate/database/models"
)

// ProxyState is the stored delegation state of one managed target. An empty
// PreviousImplementation means there is nothing to roll back to.
type ProxyState struct {
	cbor.StructAsArray
	Implementation         string
	PreviousImplementation string
	Governance             string
	Version                uint32
}

// HasPrevious reports whether a rollback target is recorded
func (s *ProxyState) HasPrevious() bool {
	return s.PreviousImplementation != ""
}

// GetProxyState returns the state of the proxy fronting target, or nil if the
// proxy has not been initialized
func (d *Database) GetProxyState(
	target string,
	txn *Txn,
) (*ProxyState, error) {
	var ret ProxyState
	found, err := d.getRecord(proxyStateKey(target), &ret, txn)
	if err != nil || !found {
		return nil, err
	}
	return &ret, nil
}

// HasProxyState reports whether the proxy fronting target was initialized
func (d *Database) HasProxyState(target string, txn *Txn) (bool, error) {
	return d.hasRecord(proxyStateKey(target), txn)
}

func (d *Database) SetProxyState(
	target string,
	state *ProxyState,
	txn *Txn,
) error {
	return d.setRecord(proxyStateKey(target), state, txn)
}

// GetProxyTargets returns the addresses of all initialized proxies
func (d *Database) GetProxyTargets(txn *Txn) ([]string, error) {
	records, err := d.scanPrefix([]byte(proxyKeyPrefix), txn)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(records))
	for _, record := range records {
		ret = append(
			ret,
			strings.TrimPrefix(string(record.Key), proxyKeyPrefix),
		)
	}
	return ret, nil
}

// AddProxyHistory appends an audit record for a proxy mutation
func (d *Database) AddProxyHistory(
	entry *models.ProxyHistory,
	txn *Txn,
) error {
	if txn == nil {
		return d.metadata.AddProxyHistory(entry, nil)
	}
	return d.metadata.AddProxyHistory(entry, txn.Metadata())
}

// GetProxyHistory returns the audit records of target, oldest first
func (d *Database) GetProxyHistory(
	target string,
	txn *Txn,
) ([]models.ProxyHistory, error) {
	if txn == nil {
		return d.metadata.GetProxyHistory(target, nil)
	}
	return d.metadata.GetProxyHistory(target, txn.Metadata())
}
