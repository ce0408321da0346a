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

import "context"

type txnContextKey struct{}

// WithTxn returns a context carrying txn. Components called with such a
// context join the transaction instead of opening their own.
func WithTxn(ctx context.Context, txn *Txn) context.Context {
	return context.WithValue(ctx, txnContextKey{}, txn)
}

// TxnFromContext returns the transaction carried by ctx, if any
func TxnFromContext(ctx context.Context) *Txn {
	txn, _ := ctx.Value(txnContextKey{}).(*Txn)
	return txn
}

// Update runs fn in the transaction carried by ctx, or in a new read-write
// transaction that is committed when fn succeeds. The context passed to fn
// always carries the transaction.
func (d *Database) Update(
	ctx context.Context,
	fn func(context.Context, *Txn) error,
) error {
	if txn := TxnFromContext(ctx); txn != nil {
		return fn(ctx, txn)
	}
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		return fn(WithTxn(ctx, txn), txn)
	})
}

// View runs fn in the transaction carried by ctx, or in a new read-only
// transaction that is released afterwards
func (d *Database) View(
	ctx context.Context,
	fn func(context.Context, *Txn) error,
) error {
	if txn := TxnFromContext(ctx); txn != nil {
		return fn(ctx, txn)
	}
	txn := d.Transaction(false)
	defer txn.Release()
	return fn(WithTxn(ctx, txn), txn)
}
