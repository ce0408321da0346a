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

package timelock

import "errors"

var (
	ErrAlreadyInitialized = errors.New("timelock already initialized")
	ErrNotInitialized     = errors.New("timelock not initialized")
	ErrDuplicateID        = errors.New("timelock entry already queued")
	ErrNotFound           = errors.New("timelock entry not found")
	ErrNotReady           = errors.New("timelock entry not yet executable")
	ErrInvalidAdmin       = errors.New("timelock admin must not be empty")
	ErrInvalidID          = errors.New("timelock entry ID must not be empty")
)
