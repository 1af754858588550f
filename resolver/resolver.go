// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package resolver drives swaps as the taker: it deploys both escrow legs,
// relays the maker's secret from the destination chain to the source chain,
// and refunds both legs once a swap expires.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/cache"
	"github.com/luxfi/htlc/factory"
	"github.com/luxfi/htlc/payload"
	"github.com/luxfi/htlc/store"
	"github.com/luxfi/htlc/utils"
)

const (
	// DefaultSecretCacheTTL bounds how long a scan of the destination event
	// log is reused
	DefaultSecretCacheTTL = 2 * time.Second
	// DefaultMaxConcurrency bounds the swaps advanced in parallel by Sweep
	DefaultMaxConcurrency = 8
)

var (
	ErrSwapNotFound      = errors.New("swap not found")
	ErrSwapExists        = errors.New("swap already exists")
	ErrSwapBusy          = errors.New("swap has an operation in progress")
	ErrInvalidTransition = errors.New("invalid swap state for operation")
	ErrSecretUnknown     = errors.New("secret not revealed")
	ErrWrongChain        = errors.New("order does not match resolver chains")
	ErrNotTaker          = errors.New("order taker is not this resolver")

	errNoFundCallback = errors.New("no source funding callback set")
)

// Chain is one side of the swap as seen by the resolver
type Chain interface {
	htlc.Host
	ID() ids.ID
	Now() uint64
	BalanceOf(token, holder common.Address) *uint256.Int
	Events(from int) []*htlc.Event
}

// Leg pairs a chain with the escrow factory deployed on it
type Leg struct {
	Chain   Chain
	Factory *factory.Factory
}

// Config configures a Resolver
type Config struct {
	// Address is the resolver's account on both chains and the taker of
	// every order it accepts
	Address common.Address
	Src     Leg
	Dst     Leg
	// DB persists swap records. Nil keeps them in memory only.
	DB             store.Database
	Retry          utils.RetryPolicy
	SecretCacheTTL time.Duration
	MaxConcurrency int
	// Registerer receives the resolver metrics. Nil registers nothing.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// FundSrcFunc makes the maker's principal available at the source escrow
// address before the source escrow is created
type FundSrcFunc func(ctx context.Context, swap Swap, escrow common.Address, imm *htlc.Immutables) error

// Resolver tracks swaps through their lifecycle
type Resolver struct {
	address  common.Address
	src      Leg
	dst      Leg
	db       store.Database
	retry    utils.RetryPolicy
	maxProcs int
	metrics  *Metrics
	log      *zap.Logger
	clock    func() time.Time

	// secrets memoizes destination log scans keyed by escrow address
	secrets *cache.TTLCache[common.Address, [htlc.SecretLen]byte]

	mu       sync.RWMutex
	swaps    map[common.Hash]*Swap
	inflight set.Set[common.Hash]

	// Callbacks
	onFundSrc FundSrcFunc
	onSettled func(swap Swap)
}

// New creates a resolver over the given legs
func New(cfg *Config) (*Resolver, error) {
	if cfg.Src.Chain == nil || cfg.Src.Factory == nil || cfg.Dst.Chain == nil || cfg.Dst.Factory == nil {
		return nil, errors.New("both legs require a chain and a factory")
	}
	if cfg.Src.Chain.ID() == cfg.Dst.Chain.ID() {
		return nil, fmt.Errorf("source and destination chain are both %s", cfg.Src.Chain.ID())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	retry := cfg.Retry
	if retry == (utils.RetryPolicy{}) {
		retry = utils.DefaultRetryPolicy
	}
	ttl := cfg.SecretCacheTTL
	if ttl <= 0 {
		ttl = DefaultSecretCacheTTL
	}
	maxProcs := cfg.MaxConcurrency
	if maxProcs <= 0 {
		maxProcs = DefaultMaxConcurrency
	}

	return &Resolver{
		address:  cfg.Address,
		src:      cfg.Src,
		dst:      cfg.Dst,
		db:       cfg.DB,
		retry:    retry,
		maxProcs: maxProcs,
		metrics:  NewMetrics(registerer),
		log: logger.With(
			zap.Stringer("resolver", cfg.Address),
			zap.Stringer("srcChainID", cfg.Src.Chain.ID()),
			zap.Stringer("dstChainID", cfg.Dst.Chain.ID()),
		),
		clock:    time.Now,
		secrets:  cache.NewTTLCache[common.Address, [htlc.SecretLen]byte](ttl),
		swaps:    make(map[common.Hash]*Swap),
		inflight: set.Of[common.Hash](),
	}, nil
}

// SetCallbacks sets the hooks invoked during the swap lifecycle
func (r *Resolver) SetCallbacks(onFundSrc FundSrcFunc, onSettled func(swap Swap)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFundSrc = onFundSrc
	r.onSettled = onSettled
}

// Load restores persisted swaps. Records already in memory are kept.
func (r *Resolver) Load() (int, error) {
	if r.db == nil {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	err := r.db.Iterate([]byte(swapPrefix), func(_, value []byte) error {
		s, err := decodeSwap(value)
		if err != nil {
			return err
		}
		if _, ok := r.swaps[s.ID()]; ok {
			return nil
		}
		r.swaps[s.ID()] = s
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to load swaps: %w", err)
	}
	r.log.Info("Loaded swaps", zap.Int("count", loaded))
	return loaded, nil
}

// Accept registers order as a pending swap taken by this resolver
func (r *Resolver) Accept(order *payload.SwapOrder) (Swap, error) {
	if err := order.Verify(); err != nil {
		return Swap{}, err
	}
	if order.SrcChain != r.src.Chain.ID() || order.DstChain != r.dst.Chain.ID() {
		return Swap{}, fmt.Errorf("%w: order %s -> %s", ErrWrongChain, order.SrcChain, order.DstChain)
	}
	if order.Taker != r.address {
		return Swap{}, fmt.Errorf("%w: %s", ErrNotTaker, order.Taker)
	}

	now := uint64(r.clock().Unix())
	s := &Swap{
		Order:     order,
		State:     SwapStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.swaps[s.ID()]; ok {
		return Swap{}, fmt.Errorf("%w: %s", ErrSwapExists, s.ID())
	}
	if err := r.persist(s); err != nil {
		return Swap{}, err
	}
	r.swaps[s.ID()] = s
	r.metrics.transition(s.State)

	r.log.Info("Accepted swap",
		zap.Stringer("hashlock", s.ID()),
		zap.Stringer("maker", order.Maker),
		zap.String("srcAmount", order.SrcAmount.Dec()),
		zap.String("dstAmount", order.DstAmount.Dec()),
	)
	return *s, nil
}

// DeploySrc funds and creates the source escrow. The maker's principal is
// supplied by the funding callback and the resolver adds the safety deposit.
func (r *Resolver) DeploySrc(ctx context.Context, id common.Hash) error {
	return r.do(ctx, id, "deploy_src", false, func(s *Swap) error {
		if s.State != SwapStatePending {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
		}
		r.mu.RLock()
		fund := r.onFundSrc
		r.mu.RUnlock()
		if fund == nil {
			return errNoFundCallback
		}

		imm, err := s.Order.SrcImmutables().WithDeployedAt(r.src.Chain.Now())
		if err != nil {
			return err
		}
		addr := r.src.Factory.AddressOfEscrowSrc(imm)
		if err := fund(ctx, *s, addr, imm); err != nil {
			return fmt.Errorf("failed to fund source escrow: %w", err)
		}
		if err := r.transfer(r.src, r.src.Factory.NativeToken(), addr, imm.SafetyDeposit); err != nil {
			return fmt.Errorf("failed to send source safety deposit: %w", err)
		}

		inst, stamped, err := r.src.Factory.CreateSrcEscrow(r.address, s.Order.SrcImmutables())
		if err != nil {
			return err
		}
		s.SrcEscrow = inst.Address()
		s.SrcImmutables = stamped
		s.State = SwapStateSrcLocked
		return nil
	})
}

// DeployDst creates the destination escrow funded by the resolver
func (r *Resolver) DeployDst(ctx context.Context, id common.Hash) error {
	return r.do(ctx, id, "deploy_dst", false, func(s *Swap) error {
		if s.State != SwapStateSrcLocked {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
		}
		imm := s.Order.DstImmutables()
		value := imm.SafetyDeposit.Clone()
		if imm.Token == r.dst.Factory.NativeToken() {
			value.Add(value, imm.Amount)
		}

		inst, stamped, err := r.dst.Factory.CreateDstEscrow(
			r.address,
			imm,
			s.SrcImmutables.Timelocks.Get(htlc.SrcCancellation),
			value,
		)
		if err != nil {
			return err
		}
		s.DstEscrow = inst.Address()
		s.DstImmutables = stamped
		s.State = SwapStateDstLocked
		return nil
	})
}

// RevealSecret records the maker's secret once both legs are locked
func (r *Resolver) RevealSecret(id common.Hash, secret [htlc.SecretLen]byte) error {
	return r.do(context.Background(), id, "reveal_secret", false, func(s *Swap) error {
		if s.State != SwapStateDstLocked {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
		}
		if htlc.HashSecret(secret) != s.Order.Hashlock {
			return htlc.ErrInvalidSecret
		}
		s.Secret = secret
		s.HasSecret = true
		return nil
	})
}

// LearnSecret looks for a withdrawal from the destination escrow made by
// someone else. When one is found the secret is recorded and the swap moves
// to SwapStateDstWithdrawn.
func (r *Resolver) LearnSecret(id common.Hash) error {
	return r.do(context.Background(), id, "learn_secret", false, func(s *Swap) error {
		if s.State != SwapStateDstLocked {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
		}
		secret, err := r.secrets.Get(s.DstEscrow, r.scanWithdrawal, false)
		if err != nil {
			return err
		}
		if htlc.HashSecret(secret) != s.Order.Hashlock {
			return htlc.ErrInvalidSecret
		}
		s.Secret = secret
		s.HasSecret = true
		s.State = SwapStateDstWithdrawn
		return nil
	})
}

func (r *Resolver) scanWithdrawal(escrowAddr common.Address) ([htlc.SecretLen]byte, error) {
	for _, evt := range r.dst.Chain.Events(0) {
		if evt.Address != escrowAddr || evt.Type != payload.WithdrawalType {
			continue
		}
		p, err := payload.ParseEvent(evt)
		if err != nil {
			r.log.Warn("Skipping malformed event",
				zap.Stringer("escrow", escrowAddr),
				zap.Error(err),
			)
			continue
		}
		return p.(*payload.Withdrawal).Secret, nil
	}
	return [htlc.SecretLen]byte{}, fmt.Errorf("%w: escrow %s", ErrSecretUnknown, escrowAddr)
}

// WithdrawDst pays the maker on the destination chain with the revealed
// secret, waiting for the withdrawal window to open.
func (r *Resolver) WithdrawDst(ctx context.Context, id common.Hash) error {
	return r.do(ctx, id, "withdraw_dst", true, func(s *Swap) error {
		if s.State != SwapStateDstLocked {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
		}
		if !s.HasSecret {
			return ErrSecretUnknown
		}
		if err := r.dst.Factory.BindDst(s.DstEscrow).Withdraw(r.address, s.Secret, s.DstImmutables); err != nil {
			return err
		}
		r.secrets.Invalidate(s.DstEscrow)
		s.State = SwapStateDstWithdrawn
		return nil
	})
}

// WithdrawSrc claims the source escrow with the secret made public on the
// destination chain, waiting for the withdrawal window to open.
func (r *Resolver) WithdrawSrc(ctx context.Context, id common.Hash) error {
	return r.do(ctx, id, "withdraw_src", true, func(s *Swap) error {
		if s.State != SwapStateDstWithdrawn {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
		}
		if err := r.src.Factory.BindSrc(s.SrcEscrow).Withdraw(r.address, s.Secret, s.SrcImmutables); err != nil {
			return err
		}
		s.State = SwapStateSettled
		return nil
	})
}

// Cancel refunds an expired swap: the destination leg back to the resolver
// first, then the source leg back to the maker. Each step waits for its
// cancellation window.
func (r *Resolver) Cancel(ctx context.Context, id common.Hash) error {
	return r.do(ctx, id, "cancel", true, r.cancelStep)
}

func (r *Resolver) cancelStep(s *Swap) error {
	switch s.State {
	case SwapStateDstLocked:
		if err := r.dst.Factory.BindDst(s.DstEscrow).Cancel(r.address, s.DstImmutables); err != nil {
			return err
		}
		s.State = SwapStateDstRefunded
		fallthrough
	case SwapStateSrcLocked, SwapStateDstRefunded:
		if err := r.src.Factory.BindSrc(s.SrcEscrow).Cancel(r.address, s.SrcImmutables); err != nil {
			return err
		}
		s.State = SwapStateCancelled
		return nil
	case SwapStatePending:
		s.State = SwapStateCancelled
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, s.State)
	}
}

// Sweep makes one attempt to advance every open swap without waiting:
// learning published secrets, claiming the source leg and cancelling
// expired legs. It returns how many swaps changed state.
func (r *Resolver) Sweep(ctx context.Context) (int, error) {
	var (
		mu      sync.Mutex
		changed int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.maxProcs)
	for _, s := range r.ListSwaps() {
		if s.State.Terminal() || s.State == SwapStatePending {
			continue
		}
		id := s.ID()
		eg.Go(func() error {
			ok, err := r.sweepOne(egCtx, id)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
			return nil
		})
	}
	err := eg.Wait()
	return changed, err
}

// sweepOne advances one swap and reports whether it moved. Window and
// visibility errors mean "not yet" and are not failures.
func (r *Resolver) sweepOne(ctx context.Context, id common.Hash) (bool, error) {
	before, err := r.GetSwap(id)
	if err != nil {
		return false, err
	}

	var step func(s *Swap) error
	switch before.State {
	case SwapStateDstLocked:
		step = func(s *Swap) error {
			if s.HasSecret {
				return r.cancelOrRun(s, func() error {
					if err := r.dst.Factory.BindDst(s.DstEscrow).Withdraw(r.address, s.Secret, s.DstImmutables); err != nil {
						return err
					}
					s.State = SwapStateDstWithdrawn
					return nil
				})
			}
			secret, err := r.secrets.Get(s.DstEscrow, r.scanWithdrawal, true)
			if err == nil && htlc.HashSecret(secret) == s.Order.Hashlock {
				s.Secret = secret
				s.HasSecret = true
				s.State = SwapStateDstWithdrawn
				return nil
			}
			return r.cancelStep(s)
		}
	case SwapStateDstWithdrawn:
		step = func(s *Swap) error {
			if err := r.src.Factory.BindSrc(s.SrcEscrow).Withdraw(r.address, s.Secret, s.SrcImmutables); err != nil {
				return err
			}
			s.State = SwapStateSettled
			return nil
		}
	case SwapStateSrcLocked, SwapStateDstRefunded:
		step = r.cancelStep
	default:
		return false, nil
	}

	err = r.do(ctx, id, "sweep", false, step)
	switch {
	case err == nil:
	case errors.Is(err, htlc.ErrInvalidTime), errors.Is(err, ErrSwapBusy):
		// Not yet, or another operation is driving it.
	default:
		return false, err
	}

	after, err := r.GetSwap(id)
	if err != nil {
		return false, err
	}
	return after.State != before.State, nil
}

// cancelOrRun runs withdraw, and falls back to cancelling once the
// destination cancellation window is reached.
func (r *Resolver) cancelOrRun(s *Swap, withdraw func() error) error {
	if r.dst.Chain.Now() >= s.DstImmutables.Timelocks.Get(htlc.DstCancellation) {
		return r.cancelStep(s)
	}
	return withdraw()
}

// GetSwap returns a copy of the swap with the given hashlock
func (r *Resolver) GetSwap(id common.Hash) (Swap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.swaps[id]
	if !ok {
		return Swap{}, fmt.Errorf("%w: %s", ErrSwapNotFound, id)
	}
	return *s, nil
}

// ListSwaps returns copies of all known swaps, optionally filtered by state
func (r *Resolver) ListSwaps(states ...SwapState) []Swap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter := set.Of(states...)
	out := make([]Swap, 0, len(r.swaps))
	for _, s := range r.swaps {
		if filter.Len() > 0 && !filter.Contains(s.State) {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// Balance returns the resolver's holdings of token on the leg's chain
func (r *Resolver) Balance(leg Leg, token common.Address) *uint256.Int {
	return leg.Chain.BalanceOf(token, r.address)
}

// do runs step on a copy of the swap. Steps only record state after the
// matching chain call succeeded, so whatever progress the copy holds is
// committed even when a later part of the step fails. At most one operation
// runs per swap at a time.
func (r *Resolver) do(ctx context.Context, id common.Hash, op string, retry bool, step func(s *Swap) error) error {
	s, err := r.acquire(id)
	if err != nil {
		return err
	}
	defer r.release(id)

	log := r.log.With(zap.String("op", op), zap.Stringer("hashlock", id))
	from := s.State

	run := func() error { return step(s) }
	if retry {
		err = utils.WithRetriesTimeout(ctx, log, r.retry, run, func(err error) bool {
			return errors.Is(err, htlc.ErrInvalidTime)
		})
	} else {
		err = run()
	}
	if err == nil || s.State != from || s.HasSecret {
		s.UpdatedAt = uint64(r.clock().Unix())
		if commitErr := r.commit(s); commitErr != nil {
			return errors.Join(err, commitErr)
		}
	}
	if err != nil {
		r.metrics.failure(op, err)
		log.Debug("Swap operation failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", op, id, err)
	}

	if s.State != from {
		r.metrics.transition(s.State)
		log.Info("Swap advanced",
			zap.Stringer("from", from),
			zap.Stringer("to", s.State),
		)
		if s.State == SwapStateSettled {
			r.mu.RLock()
			onSettled := r.onSettled
			r.mu.RUnlock()
			if onSettled != nil {
				onSettled(*s)
			}
		}
	}
	return nil
}

func (r *Resolver) acquire(id common.Hash) (*Swap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.swaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSwapNotFound, id)
	}
	if r.inflight.Contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrSwapBusy, id)
	}
	r.inflight.Add(id)
	r.metrics.inflightSwaps.Set(float64(r.inflight.Len()))
	cp := *s
	return &cp, nil
}

func (r *Resolver) release(id common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight.Remove(id)
	r.metrics.inflightSwaps.Set(float64(r.inflight.Len()))
}

func (r *Resolver) commit(s *Swap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persist(s); err != nil {
		return err
	}
	r.swaps[s.ID()] = s
	return nil
}

// persist must be called with r.mu held
func (r *Resolver) persist(s *Swap) error {
	if r.db == nil {
		return nil
	}
	b, err := encodeSwap(s)
	if err != nil {
		return err
	}
	if err := r.db.Put(swapKey(s.ID()), b); err != nil {
		return fmt.Errorf("failed to persist swap %s: %w", s.ID(), err)
	}
	return nil
}

func (r *Resolver) transfer(leg Leg, token, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return leg.Chain.Execute(func(tx htlc.Tx) error {
		return tx.Transfer(token, r.address, to, amount)
	})
}
