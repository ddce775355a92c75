// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/crypto-coin-world/libbitcoin-blockchain/chainio"

// Reader, Writer, and ScriptEngine are the abstract chain_oracle
// capabilities the validator and organizer consume (spec.md Design Notes,
// "Deep inheritance": composition over a pure-virtual base).
type (
	Reader       = chainio.Reader
	Writer       = chainio.Writer
	ScriptEngine = chainio.ScriptEngine
)
