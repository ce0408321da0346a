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
	"bytes"
	"errors"

	"github.com/blinklabs-io/tollgate/database/types"
)

// GetTargetData returns a value from the data space of a managed target. It
// returns types.ErrBlobKeyNotFound when the key is absent.
func (d *Database) GetTargetData(
	address string,
	key string,
	txn *Txn,
) ([]byte, error) {
	var ret []byte
	err := d.blobTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.blob.Get(txn.Blob(), targetDataKey(address, key))
		return err
	})
	return ret, err
}

// HasTargetData reports whether key is present in the data space of a
// managed target
func (d *Database) HasTargetData(
	address string,
	key string,
	txn *Txn,
) (bool, error) {
	return d.hasRecord(targetDataKey(address, key), txn)
}

func (d *Database) SetTargetData(
	address string,
	key string,
	val []byte,
	txn *Txn,
) error {
	return d.blobTxn(txn, true, func(txn *Txn) error {
		return d.blob.Set(txn.Blob(), targetDataKey(address, key), val)
	})
}

func (d *Database) DeleteTargetData(
	address string,
	key string,
	txn *Txn,
) error {
	err := d.deleteRecord(targetDataKey(address, key), txn)
	if errors.Is(err, types.ErrBlobKeyNotFound) {
		return nil
	}
	return err
}

// TargetData returns the data space of a managed target in key order, with
// the target prefix stripped from the keys
func (d *Database) TargetData(
	address string,
	txn *Txn,
) ([]KeyValue, error) {
	prefix := targetDataPrefix(address)
	records, err := d.scanPrefix(prefix, txn)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Key = bytes.TrimPrefix(records[i].Key, prefix)
	}
	return records, nil
}
