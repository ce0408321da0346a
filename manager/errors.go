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

package manager

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInitialized  = errors.New("upgrade manager already initialized")
	ErrNotInitialized      = errors.New("upgrade manager not initialized")
	ErrInvalidAdmin        = errors.New("upgrade manager admin must not be empty")
	ErrInvalidValidatorSet = errors.New("invalid validator set")
	ErrInvalidThreshold    = errors.New("invalid approval threshold")
	ErrInvalidProposal     = errors.New("invalid proposal")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExecuted     = errors.New("proposal already executed")
	ErrCancelled           = errors.New("proposal cancelled")
	ErrNotReady            = errors.New("proposal not ready")
	ErrInvalidVersion      = errors.New("invalid target version")
	ErrSwapFailed          = errors.New("implementation swap failed")
	ErrMigrationFailed     = errors.New("migration failed")
)

// MigrationError is returned by Execute when the target's migration or
// integrity check failed and the proxy was rolled back
type MigrationError struct {
	ProposalID uint64
	Target     string
	Err        error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf(
		"proposal %d: migration of %s failed, rolled back: %s",
		e.ProposalID,
		e.Target,
		e.Err,
	)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}
