// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain provides an in-process single-chain host for escrow
// instances: a token ledger, a block clock, a contract registry and an event
// log, with all-or-nothing execution of calls.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"go.uber.org/zap"

	"github.com/luxfi/htlc"
)

var _ htlc.Host = (*Chain)(nil)

var errContractExists = errors.New("contract already deployed")

// Chain serialises every call under one lock and journals the effects of
// each call so a failing call leaves no trace.
type Chain struct {
	id     ids.ID
	log    *zap.Logger
	mu     sync.RWMutex
	now    uint64
	ledger *Ledger

	contracts map[common.Address]any
	events    []*htlc.Event
}

// Config configures a Chain
type Config struct {
	ChainID ids.ID
	// GenesisTime is the initial block timestamp. Zero means wall clock.
	GenesisTime uint64
	Logger      *zap.Logger
}

// New creates an empty chain
func New(cfg *Config) *Chain {
	now := cfg.GenesisTime
	if now == 0 {
		now = uint64(time.Now().Unix())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		id:        cfg.ChainID,
		log:       logger.With(zap.Stringer("chainID", cfg.ChainID)),
		now:       now,
		ledger:    NewLedger(),
		contracts: make(map[common.Address]any),
	}
}

// ID returns the chain identifier
func (c *Chain) ID() ids.ID {
	return c.id
}

// Now returns the current block timestamp
func (c *Chain) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// SetTime moves the block clock to t. The clock never runs backwards.
func (c *Chain) SetTime(t uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.now {
		return fmt.Errorf("cannot rewind clock from %d to %d", c.now, t)
	}
	c.now = t
	return nil
}

// Advance moves the block clock forward by d seconds
func (c *Chain) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// BalanceOf returns holder's balance of token
func (c *Chain) BalanceOf(token, holder common.Address) *uint256.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.BalanceOf(token, holder)
}

// Supply returns the total issued amount of token
func (c *Chain) Supply(token common.Address) *uint256.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Supply(token)
}

// Mint issues amount of token to holder outside of any call. It is the
// genesis allocation path for tests and simulations.
func (c *Chain) Mint(token, holder common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.ledger.credit(token, holder, amount)
	return err
}

// Contract returns the contract deployed at addr
func (c *Chain) Contract(addr common.Address) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contract, ok := c.contracts[addr]
	return contract, ok
}

// Events returns a copy of the event log starting at index from
func (c *Chain) Events(from int) []*htlc.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if from >= len(c.events) {
		return nil
	}
	if from < 0 {
		from = 0
	}
	out := make([]*htlc.Event, len(c.events)-from)
	copy(out, c.events[from:])
	return out
}

// Execute runs fn as one call. If fn returns an error every transfer,
// deployment and event it made is rolled back.
func (c *Chain) Execute(fn func(tx htlc.Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &txn{chain: c, eventMark: len(c.events)}
	defer func() {
		if r := recover(); r != nil {
			tx.revert()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.revert()
		c.log.Debug("call reverted", zap.Error(err))
		return err
	}
	return nil
}

// txn implements htlc.Tx while the chain lock is held
type txn struct {
	chain     *Chain
	undo      []func()
	eventMark int
}

func (t *txn) Now() uint64 {
	return t.chain.now
}

func (t *txn) BalanceOf(token, holder common.Address) *uint256.Int {
	return t.chain.ledger.BalanceOf(token, holder)
}

func (t *txn) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	ledger := t.chain.ledger
	prevFrom, err := ledger.debit(token, from, amount)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, func() { ledger.set(token, from, prevFrom) })

	prevTo, err := ledger.credit(token, to, amount)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, func() { ledger.set(token, to, prevTo) })
	return nil
}

func (t *txn) Emit(evt *htlc.Event) {
	if evt == nil {
		return
	}
	t.chain.events = append(t.chain.events, evt)
}

func (t *txn) Deploy(addr common.Address, contract any) error {
	if _, ok := t.chain.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", errContractExists, addr)
	}
	t.chain.contracts[addr] = contract
	t.undo = append(t.undo, func() { delete(t.chain.contracts, addr) })
	return nil
}

func (t *txn) revert() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.chain.events = t.chain.events[:t.eventMark]
}
