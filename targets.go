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

package tollgate

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
)

// Methods served by data implementations
const (
	MethodImplementation = "implementation"
	MethodGet            = "get"
	MethodVersion        = "version"
)

// ErrUnknownMethod is returned for methods a data implementation does not serve
var ErrUnknownMethod = proxy.ErrUnknownMethod

// dataImplementation serves read access to the data of a managed target
// under the given code reference
func dataImplementation(
	codeRef string,
	target *migration.StoreTarget,
) proxy.Implementation {
	return proxy.ImplementationFunc(
		func(ctx context.Context, method string, args []byte) ([]byte, error) {
			switch method {
			case MethodImplementation:
				return []byte(codeRef), nil
			case MethodGet:
				snapshot, err := target.Snapshot(ctx)
				if err != nil {
					return nil, err
				}
				val, ok := snapshot[string(args)]
				if !ok {
					return nil, fmt.Errorf("%w: %s", migration.ErrKeyNotFound, args)
				}
				return val, nil
			case MethodVersion:
				version, err := target.CurrentVersion(ctx)
				if err != nil {
					return nil, err
				}
				return []byte(fmt.Sprintf("%d", version)), nil
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
			}
		},
	)
}
