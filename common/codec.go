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

package common

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

var (
	ErrGenerateHash = errors.New("could not generate hash")
)

// Compress lz4 encodes in; used for values placed in the cache
func Compress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	if _, err := io.Copy(zw, bytes.NewReader(in)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decompress reverses Compress
func Decompress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zr := lz4.NewReader(bytes.NewReader(in))
	if _, err := io.Copy(w, zr); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// HashKey computes a 16-byte blake3 digest over parts and returns it hex encoded.
// Parts are separated by a NUL so that ("ab", "c") and ("a", "bc") differ.
func HashKey(parts ...string) (string, error) {
	h := blake3.New()
	for _, part := range parts {
		if _, err := h.Write([]byte(part)); err != nil {
			return "", err
		}
		if _, err := h.Write([]byte{0}); err != nil {
			return "", err
		}
	}

	buf := make([]byte, 16)
	n, err := h.Digest().Read(buf)
	if err != nil {
		return "", err
	}
	if n != 16 {
		return "", ErrGenerateHash
	}

	return hex.EncodeToString(buf), nil
}
