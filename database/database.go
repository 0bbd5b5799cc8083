// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
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
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	ErrNotConnected = errors.New("database pool has not been configured")
	ErrNoURL        = errors.New("database.url is not set")
)

var (
	pool             PgxIface
	openTransactions map[string]string
	trxLock          sync.Mutex
)

func SetPool(myPool PgxIface) {
	trxLock.Lock()
	openTransactions = make(map[string]string)
	trxLock.Unlock()
	pool = myPool
}

// Connect opens a pgx pool to `database.url` and makes it the package pool
func Connect(ctx context.Context) error {
	url := viper.GetString("database.url")
	if url == "" {
		return ErrNoURL
	}

	myPool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// OpenTransactions logs every transaction begun but not yet committed or rolled back
// and returns how many there are
func OpenTransactions() int {
	trxLock.Lock()
	defer trxLock.Unlock()
	for id, caller := range openTransactions {
		log.Warn().Str("TrxId", id).Str("Caller", caller).Msg("transaction left open")
	}
	return len(openTransactions)
}

// Begin starts a transaction on the package pool. The transaction is tracked until it
// is committed or rolled back so leaks can be found with OpenTransactions.
func Begin(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		return nil, ErrNotConnected
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	// record transactions in openTransaction log
	_, file, lineno, ok := runtime.Caller(1)
	caller := fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	trxID := uuid.New().String()

	trxLock.Lock()
	if openTransactions == nil {
		openTransactions = make(map[string]string)
	}
	openTransactions[trxID] = caller
	trxLock.Unlock()

	return &trackedTx{
		id: trxID,
		tx: trx,
	}, nil
}

func forget(id string) {
	trxLock.Lock()
	delete(openTransactions, id)
	trxLock.Unlock()
}
