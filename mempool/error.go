// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import "fmt"

// ErrorCode identifies the kind of mempool-specific failure (spec.md §7's
// mempool taxonomy: pool_filled, blockchain_reorganized, not_found), kept
// distinct from blockchain.ErrorCode since a mempool eviction is not itself
// a consensus rule violation.
type ErrorCode int

const (
	// ErrPoolFilled indicates an entry was evicted to make room for a
	// newer one because the pool was at capacity.
	ErrPoolFilled ErrorCode = iota
	// ErrBlockchainReorganized indicates an entry was invalidated because
	// a chain reorganization unwound at least one block.
	ErrBlockchainReorganized
	// ErrNotFound indicates a lookup found no entry with the given hash.
	ErrNotFound
	// ErrInputNotFound indicates validate found no prevout, confirmed or
	// unconfirmed, for one of the transaction's inputs.
	ErrInputNotFound
	// ErrValidateInputsFailed indicates an input referenced a known
	// prevout that failed consensus validation.
	ErrValidateInputsFailed
	// ErrAlreadyConfirmed indicates the transaction is already present in
	// the best chain.
	ErrAlreadyConfirmed
)

var errorCodeStrings = map[ErrorCode]string{
	ErrPoolFilled:           "pool filled",
	ErrBlockchainReorganized: "blockchain reorganized",
	ErrNotFound:             "transaction not found",
	ErrInputNotFound:        "input not found",
	ErrValidateInputsFailed: "input validation failed",
	ErrAlreadyConfirmed:     "transaction already confirmed",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("unknown mempool error code %d", int(e))
}

// Error is a mempool-specific failure, optionally naming the offending
// input index (spec.md §7, "input_not_found / validate_inputs_failed carry
// the offending input index").
type Error struct {
	ErrorCode  ErrorCode
	InputIndex int
	Description string
}

func (e Error) Error() string { return e.Description }

// Code returns the mempool ErrorCode.
func (e Error) Code() ErrorCode { return e.ErrorCode }

func mempoolError(code ErrorCode, description string) Error {
	return Error{ErrorCode: code, Description: description}
}

func inputError(code ErrorCode, index int, description string) Error {
	return Error{ErrorCode: code, InputIndex: index, Description: description}
}
