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
	"strconv"
)

// Blob key layout. Every component instance owns its own prefix.
const (
	timelockKeyPrefix = "t/"
	proxyKeyPrefix    = "p/"
	managerKeyPrefix  = "m/"
	targetKeyPrefix   = "d/"
)

func timelockConfigKey(name string) []byte {
	return []byte(timelockKeyPrefix + name + "/config")
}

func timelockQueuePrefix(name string) []byte {
	return []byte(timelockKeyPrefix + name + "/q/")
}

func timelockEntryKey(name string, id string) []byte {
	return append(timelockQueuePrefix(name), id...)
}

func proxyStateKey(target string) []byte {
	return []byte(proxyKeyPrefix + target)
}

func managerConfigKey(name string) []byte {
	return []byte(managerKeyPrefix + name + "/config")
}

func targetDataPrefix(address string) []byte {
	return []byte(targetKeyPrefix + address + "/")
}

func targetDataKey(address string, key string) []byte {
	return append(targetDataPrefix(address), key...)
}

// ProposalTimelockID returns the timelock entry ID used for a proposal
func ProposalTimelockID(id uint64) string {
	return "proposal/" + strconv.FormatUint(id, 10)
}
