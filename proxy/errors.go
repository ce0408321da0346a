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

package proxy

import "errors"

var (
	ErrAlreadyInitialized       = errors.New("proxy already initialized")
	ErrNotInitialized           = errors.New("proxy not initialized")
	ErrInvalidImplementation    = errors.New("implementation must not be empty")
	ErrInvalidGovernance        = errors.New("governance must not be empty")
	ErrNoPreviousImplementation = errors.New("no previous implementation")
	ErrUnknownImplementation    = errors.New("implementation not registered")
	ErrDuplicateProxy           = errors.New("proxy already registered")
	ErrUnknownMethod            = errors.New("unknown method")
)
