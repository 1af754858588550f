// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"errors"
	"fmt"
)

// Error codes shared by escrow instances and the factory. The numeric values
// are stable so that resolvers can switch on them.
const (
	CodeInvalidCaller int32 = iota + 1
	CodeInvalidImmutables
	CodeInvalidSecret
	CodeInvalidTime
	CodeInsufficientEscrowBalance
	CodeInvalidCreationTime
	CodeDeployedAtOverflow
	CodeAmountOverflow
	CodeEscrowExists
)

var (
	ErrInvalidCaller             = &Error{Code: CodeInvalidCaller, Message: "invalid caller"}
	ErrInvalidImmutables         = &Error{Code: CodeInvalidImmutables, Message: "invalid immutables"}
	ErrInvalidSecret             = &Error{Code: CodeInvalidSecret, Message: "invalid secret"}
	ErrInvalidTime               = &Error{Code: CodeInvalidTime, Message: "invalid time"}
	ErrInsufficientEscrowBalance = &Error{Code: CodeInsufficientEscrowBalance, Message: "insufficient escrow balance"}
	ErrInvalidCreationTime       = &Error{Code: CodeInvalidCreationTime, Message: "invalid creation time"}
	ErrDeployedAtOverflow        = &Error{Code: CodeDeployedAtOverflow, Message: "deployed_at does not fit in 32 bits"}
	ErrAmountOverflow            = &Error{Code: CodeAmountOverflow, Message: "amount does not fit in 128 bits"}
	ErrEscrowExists              = &Error{Code: CodeEscrowExists, Message: "escrow already deployed"}
)

// Error represents an escrow protocol error
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("htlc error %d: %s", e.Code, e.Message)
}

// Is matches errors by code so that wrapped or re-created errors compare
// equal to the sentinels above.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrorCode extracts the protocol error code from err, or 0 when err does
// not carry one.
func ErrorCode(err error) int32 {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
