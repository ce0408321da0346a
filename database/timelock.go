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
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// TimelockConfig is the stored configuration of a named timelock
type TimelockConfig struct {
	cbor.StructAsArray
	Admin string
	// Delay in seconds
	Delay uint64
}

// TimelockEntry is a queued action waiting for its eta
type TimelockEntry struct {
	cbor.StructAsArray
	ID       string
	Target   string
	Action   string
	Eta      uint64
	QueuedAt uint64
}

// GetTimelockConfig returns the config of the named timelock, or nil if it
// has not been initialized
func (d *Database) GetTimelockConfig(
	name string,
	txn *Txn,
) (*TimelockConfig, error) {
	var ret TimelockConfig
	found, err := d.getRecord(timelockConfigKey(name), &ret, txn)
	if err != nil || !found {
		return nil, err
	}
	return &ret, nil
}

func (d *Database) SetTimelockConfig(
	name string,
	cfg *TimelockConfig,
	txn *Txn,
) error {
	return d.setRecord(timelockConfigKey(name), cfg, txn)
}

// GetTimelockEntry returns a queued entry, or nil if it is not queued
func (d *Database) GetTimelockEntry(
	name string,
	id string,
	txn *Txn,
) (*TimelockEntry, error) {
	var ret TimelockEntry
	found, err := d.getRecord(timelockEntryKey(name, id), &ret, txn)
	if err != nil || !found {
		return nil, err
	}
	return &ret, nil
}

// HasTimelockEntry reports whether an entry with the given ID is queued
func (d *Database) HasTimelockEntry(
	name string,
	id string,
	txn *Txn,
) (bool, error) {
	return d.hasRecord(timelockEntryKey(name, id), txn)
}

func (d *Database) SetTimelockEntry(
	name string,
	entry *TimelockEntry,
	txn *Txn,
) error {
	return d.setRecord(timelockEntryKey(name, entry.ID), entry, txn)
}

func (d *Database) DeleteTimelockEntry(
	name string,
	id string,
	txn *Txn,
) error {
	return d.deleteRecord(timelockEntryKey(name, id), txn)
}

// GetTimelockEntries returns all queued entries of the named timelock,
// ordered by ID
func (d *Database) GetTimelockEntries(
	name string,
	txn *Txn,
) ([]TimelockEntry, error) {
	prefix := timelockQueuePrefix(name)
	records, err := d.scanPrefix(prefix, txn)
	if err != nil {
		return nil, err
	}
	ret := make([]TimelockEntry, 0, len(records))
	for _, record := range records {
		var entry TimelockEntry
		if _, err := cbor.Decode(record.Value, &entry); err != nil {
			return nil, fmt.Errorf(
				"failed to decode timelock entry %q: %w",
				bytes.TrimPrefix(record.Key, prefix),
				err,
			)
		}
		ret = append(ret, entry)
	}
	return ret, nil
}
