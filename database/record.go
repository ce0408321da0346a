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
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/tollgate/database/types"
)

// KeyValue is a raw blob record
type KeyValue struct {
	Key   []byte
	Value []byte
}

// blobTxn runs fn against the blob half of txn, or of a new transaction when
// txn is nil. Owned read-write transactions are committed when fn succeeds.
func (d *Database) blobTxn(
	txn *Txn,
	readWrite bool,
	fn func(*Txn) error,
) error {
	if txn != nil {
		if txn.Blob() == nil {
			return types.ErrBlobStoreUnavailable
		}
		return fn(txn)
	}
	owned := d.Transaction(readWrite)
	if readWrite {
		return owned.Do(fn)
	}
	defer owned.Release()
	return fn(owned)
}

// getRecord decodes the CBOR record stored at key into dest. It returns false
// when the key is absent.
func (d *Database) getRecord(key []byte, dest any, txn *Txn) (bool, error) {
	found := false
	err := d.blobTxn(txn, false, func(txn *Txn) error {
		val, err := d.blob.Get(txn.Blob(), key)
		if err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return nil
			}
			return err
		}
		if _, err := cbor.Decode(val, dest); err != nil {
			return fmt.Errorf("failed to decode record %q: %w", key, err)
		}
		found = true
		return nil
	})
	return found, err
}

func (d *Database) setRecord(key []byte, src any, txn *Txn) error {
	val, err := cbor.Encode(src)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}
	return d.blobTxn(txn, true, func(txn *Txn) error {
		return d.blob.Set(txn.Blob(), key, val)
	})
}

func (d *Database) hasRecord(key []byte, txn *Txn) (bool, error) {
	var ret bool
	err := d.blobTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.blob.Has(txn.Blob(), key)
		return err
	})
	return ret, err
}

func (d *Database) deleteRecord(key []byte, txn *Txn) error {
	return d.blobTxn(txn, true, func(txn *Txn) error {
		return d.blob.Delete(txn.Blob(), key)
	})
}

// scanPrefix returns all records under prefix in key order
func (d *Database) scanPrefix(prefix []byte, txn *Txn) ([]KeyValue, error) {
	var ret []KeyValue
	err := d.blobTxn(txn, false, func(txn *Txn) error {
		it := d.blob.NewIterator(
			txn.Blob(),
			types.BlobIteratorOptions{Prefix: prefix},
		)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ret = append(
				ret,
				KeyValue{Key: item.Key(), Value: val},
			)
		}
		return it.Err()
	})
	return ret, err
}
