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

// Proxy history actions
const (
	ProxyActionInit     = "init"
	ProxyActionUpgrade  = "upgrade"
	ProxyActionRollback = "rollback"
)

// ProxyHistory is an append-only record of every change to a proxy
type ProxyHistory struct {
	ID                 uint   `gorm:"primarykey"`
	Target             string `gorm:"index;size:128;not null"`
	Action             string `gorm:"size:16;not null"`
	FromImplementation string `gorm:"size:256"`
	ToImplementation   string `gorm:"size:256;not null"`
	FromVersion        uint32
	ToVersion          uint32 `gorm:"not null"`
	Actor              string `gorm:"size:128"`
	At                 uint64 `gorm:"index;not null"`
}

// TableName returns the table name
func (ProxyHistory) TableName() string {
	return "proxy_history"
}
