package epoch

import (
	"errors"
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"tranchepool/core/events"
	"tranchepool/native/calendar"
	nativecommon "tranchepool/native/common"
	"tranchepool/native/firstloss"
	"tranchepool/native/tranche"
)

var (
	errNilState  = errors.New("epoch manager: state not configured")
	errNilSafe   = errors.New("epoch manager: pool safe not configured")
	errNilCredit = errors.New("epoch manager: credit ledger not configured")
	errNoEpoch   = errors.New("epoch manager: no current epoch")

	// ErrNotPool is returned when the epoch lifecycle is driven by a caller
	// other than the pool-enable path.
	ErrNotPool = errors.New("epoch manager: caller is not the pool")
	// ErrNotPoolOwner is returned when an owner-gated operation is attempted
	// by another caller.
	ErrNotPoolOwner = errors.New("epoch manager: caller is not the pool owner")
	// ErrNotAuthorizedCaller is returned when an operation open to the pool
	// owner or the pool itself is attempted by anyone else.
	ErrNotAuthorizedCaller = errors.New("epoch manager: caller is not authorized")
	// ErrNotPoolFeeManager is returned when accrued pool fees are withdrawn
	// by a caller other than the configured fee manager.
	ErrNotPoolFeeManager = errors.New("epoch manager: caller is not the pool fee manager")
	// ErrPoolIsNotOn is returned when settlement runs against a disabled
	// pool.
	ErrPoolIsNotOn = errors.New("epoch manager: pool is not on")
	// ErrPoolIsClosed is returned when a permanently retired pool is
	// re-enabled.
	ErrPoolIsClosed = errors.New("epoch manager: pool is closed")
	// ErrCloseTooSoon is returned when a close is attempted before the
	// current epoch's end time.
	ErrCloseTooSoon = errors.New("epoch manager: close attempted before epoch end")
	// ErrZeroAmountProvided is returned when a deposit or request carries no
	// value.
	ErrZeroAmountProvided = errors.New("epoch manager: zero amount provided")
	// ErrTrancheLiquidityCapExceeded is returned when a deposit would push
	// the pool past its liquidity cap.
	ErrTrancheLiquidityCapExceeded = errors.New("epoch manager: tranche liquidity cap exceeded")
	// ErrTrancheAssetsWipedOut is returned when a deposit targets a tranche
	// whose assets were lost while LP shares remain outstanding. Minting into
	// a zero-value tranche would hand the deposit to the wiped-out holders.
	ErrTrancheAssetsWipedOut = errors.New("epoch manager: tranche assets wiped out")
	// ErrPoolOwnerNotEnoughLiquidity is returned when a pool-owner junior
	// redemption would drop the owner's stake below its required minimum.
	ErrPoolOwnerNotEnoughLiquidity = errors.New("epoch manager: pool owner does not retain enough liquidity")
)

const moduleName = "epoch"

// engineState abstracts persistence of the settlement-relevant pool state.
type engineState interface {
	GetPoolState() (*PoolState, error)
	PutPoolState(state *PoolState) error
}

// PoolSafe is the liquidity collaborator consumed by the epoch manager.
type PoolSafe interface {
	// AvailableBalanceForPool returns the liquidity usable for settlement.
	AvailableBalanceForPool() *big.Int
	// Deposit credits LP capital into the safe.
	Deposit(amount *big.Int)
	// Withdraw debits settled redemption value out of the safe.
	Withdraw(amount *big.Int) error
}

// CreditLedger refreshes credit-side accounting at each close and reports the
// profit, loss and loss recovery realised over the elapsed period.
type CreditLedger interface {
	RefreshPnL() (profit, loss, recovery *big.Int, err error)
}

// VaultView optionally exposes per-address LP share balances so the manager
// can enforce the pool owner's junior stake minimum. The view is expected to
// net out shares already locked in pending requests.
type VaultView interface {
	SharesOf(t Tranche, addr gethcommon.Address) *big.Int
}

// CloseSummary reports the outcome of one epoch close.
type CloseSummary struct {
	Epoch                 *Epoch
	Profit                *big.Int
	Loss                  *big.Int
	LossRecovery          *big.Int
	SeniorSharesProcessed *big.Int
	SeniorAmountProcessed *big.Int
	JuniorSharesProcessed *big.Int
	JuniorAmountProcessed *big.Int
	UnprocessedAmount     *big.Int
	PoolFeesAccrued       *big.Int
}

// Engine orchestrates period advancement: PnL distribution across the
// tranches and first-loss covers, and FIFO redemption settlement against
// available liquidity under the senior/junior ratio constraint. Every
// operation commits atomically; a failed close restores all cover state and
// leaves the pool state untouched.
type Engine struct {
	state      engineState
	safe       PoolSafe
	credit     CreditLedger
	covers     []*firstloss.Engine
	vault      VaultView
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	clock      clockwork.Clock
	lpConfig   LPConfig
	settings   PoolSettings
	poolCaller gethcommon.Address
	poolOwner  gethcommon.Address
	feeManager gethcommon.Address
	poolFeeBps uint64

	poolOn      bool
	poolClosed  bool
	readyForFLC bool
}

// NewEngine constructs an epoch manager for a pool driven by the given
// authorized caller and owned by the given owner.
func NewEngine(poolCaller, poolOwner gethcommon.Address, lpConfig LPConfig, settings PoolSettings) *Engine {
	return &Engine{
		poolCaller: poolCaller,
		poolOwner:  poolOwner,
		lpConfig:   lpConfig.Clone(),
		settings:   settings,
		emitter:    events.NoopEmitter{},
		clock:      clockwork.NewRealClock(),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPoolSafe wires the liquidity collaborator.
func (e *Engine) SetPoolSafe(safe PoolSafe) { e.safe = safe }

// SetCreditLedger wires the credit-side PnL source.
func (e *Engine) SetCreditLedger(credit CreditLedger) { e.credit = credit }

// SetVaultView wires the optional LP share balance view used for the pool
// owner liquidity check. Nil disables the check.
func (e *Engine) SetVaultView(vault VaultView) { e.vault = vault }

// AddFirstLossCover registers a cover engine. Covers absorb losses in
// registration order, ahead of both tranches, and recover last in reverse
// registration order.
func (e *Engine) AddFirstLossCover(cover *firstloss.Engine) {
	if cover == nil {
		return
	}
	e.covers = append(e.covers, cover)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the protocol pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetClock overrides the time source. Nil restores the real clock.
func (e *Engine) SetClock(clock clockwork.Clock) {
	if clock == nil {
		e.clock = clockwork.NewRealClock()
		return
	}
	e.clock = clock
}

// LPConfig returns a copy of the pool's LP configuration.
func (e *Engine) LPConfig() LPConfig { return e.lpConfig.Clone() }

// SetLPConfig replaces the LP configuration. Only the pool owner may mutate
// it.
func (e *Engine) SetLPConfig(caller gethcommon.Address, config LPConfig) error {
	if caller != e.poolOwner {
		return ErrNotPoolOwner
	}
	if err := config.Validate(); err != nil {
		return err
	}
	e.lpConfig = config.Clone()
	return nil
}

// SetPoolFeeManager designates the address allowed to withdraw accrued pool
// fees and the fee cut, in basis points, taken from each period's profit
// before tranche distribution. Owner gated.
func (e *Engine) SetPoolFeeManager(caller, manager gethcommon.Address, feeBps uint64) error {
	if caller != e.poolOwner {
		return ErrNotPoolOwner
	}
	if feeBps > 10_000 {
		return fmt.Errorf("epoch manager: pool fee %d bps exceeds 10000", feeBps)
	}
	e.feeManager = manager
	e.poolFeeBps = feeBps
	return nil
}

// IsPoolOn reports whether the pool is enabled.
func (e *Engine) IsPoolOn() bool { return e.poolOn }

// IsReadyForFirstLossCoverWithdrawal implements the first-loss engines' pool
// view.
func (e *Engine) IsReadyForFirstLossCoverWithdrawal() bool { return e.readyForFLC }

// SetReadyForFirstLossCoverWithdrawal lifts the cover withdrawal gate once
// the pool no longer depends on its covers. Open to the pool owner and the
// pool caller.
func (e *Engine) SetReadyForFirstLossCoverWithdrawal(caller gethcommon.Address, ready bool) error {
	if caller != e.poolOwner && caller != e.poolCaller {
		return ErrNotAuthorizedCaller
	}
	e.readyForFLC = ready
	return nil
}

// EnablePool turns the pool on and starts its first epoch. Owner gated.
func (e *Engine) EnablePool(caller gethcommon.Address) error {
	if caller != e.poolOwner {
		return ErrNotPoolOwner
	}
	if e.poolClosed {
		return ErrPoolIsClosed
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	e.poolOn = true
	return e.startNewEpoch()
}

// DisablePool turns the pool off. Owner gated. Settlement operations fail
// with ErrPoolIsNotOn until the pool is re-enabled.
func (e *Engine) DisablePool(caller gethcommon.Address) error {
	if caller != e.poolOwner {
		return ErrNotPoolOwner
	}
	e.poolOn = false
	return nil
}

// ClosePool retires the pool permanently. Every registered first-loss cover
// must have paid out all of its providers first; a closed pool cannot be
// re-enabled. Owner gated.
func (e *Engine) ClosePool(caller gethcommon.Address) error {
	if caller != e.poolOwner {
		return ErrNotPoolOwner
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	for _, cover := range e.covers {
		if err := cover.AssertProvidersPaidOut(); err != nil {
			return err
		}
	}
	e.poolOn = false
	e.poolClosed = true
	return nil
}

// WithdrawPoolFees pays the full accrued fee balance out of the safe to the
// pool fee manager and returns the amount paid.
func (e *Engine) WithdrawPoolFees(caller gethcommon.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.feeManager == (gethcommon.Address{}) || caller != e.feeManager {
		return nil, ErrNotPoolFeeManager
	}
	if e.safe == nil {
		return nil, errNilSafe
	}
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	next := state.Clone()
	amount := new(big.Int).Set(next.AccruedFees)
	if amount.Sign() == 0 {
		return nil, ErrZeroAmountProvided
	}
	if err := e.safe.Withdraw(amount); err != nil {
		return nil, err
	}
	next.AccruedFees = big.NewInt(0)
	if err := e.state.PutPoolState(next); err != nil {
		e.safe.Deposit(amount)
		return nil, err
	}
	return amount, nil
}

// StartNewEpoch opens the next epoch. Only the pool-enable path may drive the
// epoch lifecycle directly.
func (e *Engine) StartNewEpoch(caller gethcommon.Address) error {
	if caller != e.poolCaller {
		return ErrNotPool
	}
	if !e.poolOn {
		return ErrPoolIsNotOn
	}
	return e.startNewEpoch()
}

// CurrentEpoch returns a copy of the active epoch.
func (e *Engine) CurrentEpoch() (*Epoch, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if state.Current == nil {
		return nil, errNoEpoch
	}
	return state.Current.Clone(), nil
}

// TrancheAssets returns a copy of the current tranche asset split.
func (e *Engine) TrancheAssets() (*tranche.Assets, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return state.Assets.Clone(), nil
}

// TrancheSupply returns the LP share supply of the given tranche.
func (e *Engine) TrancheSupply(t Tranche) (*big.Int, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if t == SeniorTranche {
		return new(big.Int).Set(state.SeniorSupply), nil
	}
	return new(big.Int).Set(state.JuniorSupply), nil
}

// UnprocessedEpochInfos returns the unresolved redemption summaries of the
// given tranche, oldest first.
func (e *Engine) UnprocessedEpochInfos(t Tranche) ([]*tranche.RedemptionSummary, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return state.tracker(t).Unprocessed(), nil
}

// Deposit adds LP capital to a tranche, minting shares at the current LP
// token price. The liquidity cap, when configured, bounds the pool's total
// asset value.
func (e *Engine) Deposit(t Tranche, amount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.poolOn {
		return nil, ErrPoolIsNotOn
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmountProvided
	}
	if e.safe == nil {
		return nil, errNilSafe
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	next := state.Clone()

	if cap := e.lpConfig.LiquidityCapWei; cap != nil && cap.Sign() > 0 {
		projected := new(big.Int).Add(next.Assets.Total(), amount)
		if projected.Cmp(cap) > 0 {
			return nil, ErrTrancheLiquidityCapExceeded
		}
	}

	price := next.price(t)
	shares := new(big.Int).Set(amount)
	if price.Supply.Sign() > 0 {
		if price.Assets.Sign() == 0 {
			return nil, ErrTrancheAssetsWipedOut
		}
		shares = price.SharesForAssets(amount)
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroAmountProvided
	}

	if t == SeniorTranche {
		next.Assets.Senior = new(big.Int).Add(next.Assets.Senior, amount)
		next.SeniorSupply = new(big.Int).Add(next.SeniorSupply, shares)
	} else {
		next.Assets.Junior = new(big.Int).Add(next.Assets.Junior, amount)
		next.JuniorSupply = new(big.Int).Add(next.JuniorSupply, shares)
	}

	if err := e.state.PutPoolState(next); err != nil {
		return nil, err
	}
	e.safe.Deposit(amount)
	return shares, nil
}

// AddRedemptionRequest records a lender's request to redeem shares from a
// tranche during the open epoch. Pool-owner junior redemptions are refused
// when the owner would fall below its required junior stake.
func (e *Engine) AddRedemptionRequest(caller gethcommon.Address, t Tranche, shares *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.poolOn {
		return ErrPoolIsNotOn
	}
	if shares == nil || shares.Sign() <= 0 {
		return ErrZeroAmountProvided
	}

	state, err := e.loadState()
	if err != nil {
		return err
	}
	next := state.Clone()

	if err := e.checkPoolOwnerLiquidity(caller, t, shares, next); err != nil {
		return err
	}
	if err := next.tracker(t).AddRedemptionRequest(shares); err != nil {
		return err
	}
	return e.state.PutPoolState(next)
}

// CancelRedemptionRequest withdraws shares from the open epoch's request
// summary. Requests carried over from closed epochs cannot be cancelled.
func (e *Engine) CancelRedemptionRequest(t Tranche, shares *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.poolOn {
		return ErrPoolIsNotOn
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	next := state.Clone()
	if err := next.tracker(t).CancelRedemptionRequest(shares); err != nil {
		return err
	}
	return e.state.PutPoolState(next)
}

// CloseEpoch settles the current epoch: it queries available liquidity,
// distributes the period's PnL through the loss waterfall, settles redemption
// requests FIFO under the senior/junior ratio constraint, emits the closure
// summary and opens the next epoch. Any precondition failure aborts the whole
// operation with no partial state commit.
func (e *Engine) CloseEpoch() (summary *CloseSummary, err error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.poolOn {
		return nil, ErrPoolIsNotOn
	}
	if e.safe == nil {
		return nil, errNilSafe
	}
	if e.credit == nil {
		return nil, errNilCredit
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if state.Current == nil {
		return nil, errNoEpoch
	}
	now := e.clock.Now().UTC()
	if now.Before(state.Current.EndTime) {
		return nil, ErrCloseTooSoon
	}

	// Checkpoint the cover states and track safe withdrawals; the pool state
	// itself is only committed by the single PutPoolState below, so a failed
	// close restores the covers and re-credits the safe, leaving no side
	// effects.
	coverSnaps := make([]*firstloss.State, len(e.covers))
	for i, cover := range e.covers {
		snap, snapErr := cover.SnapshotState()
		if snapErr != nil {
			return nil, snapErr
		}
		coverSnaps[i] = snap
	}
	withdrawn := big.NewInt(0)
	coverTransfers := make([]*big.Int, len(e.covers))
	for i := range coverTransfers {
		coverTransfers[i] = big.NewInt(0)
	}
	defer func() {
		if err == nil {
			return
		}
		for i, cover := range e.covers {
			// Reverse only the value that actually moved against the safe:
			// absorbed losses flowed in, recoveries flowed back out. Profit
			// distributed to a cover never touches the safe, so the snapshot
			// alone undoes it.
			net := coverTransfers[i]
			switch {
			case net.Sign() > 0:
				if withdrawErr := e.safe.Withdraw(net); withdrawErr != nil {
					err = errors.Join(err, fmt.Errorf("epoch manager: cover %s safe rollback failed: %w", cover.Name(), withdrawErr))
				}
			case net.Sign() < 0:
				e.safe.Deposit(new(big.Int).Neg(net))
			}
			if restoreErr := cover.RestoreState(coverSnaps[i]); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("epoch manager: cover %s rollback failed: %w", cover.Name(), restoreErr))
			}
		}
		if withdrawn.Sign() > 0 {
			e.safe.Deposit(withdrawn)
		}
	}()

	next := state.Clone()
	closed := next.Current

	// Step 1: available liquidity.
	liquidity := e.safe.AvailableBalanceForPool()

	// Step 2: PnL distribution. The pool fee cut comes off the top of the
	// period's profit before the tranche split; accrued fees stay in the safe
	// but are reserved out of the settlement budget until withdrawn.
	profit, loss, recovery, err := e.credit.RefreshPnL()
	if err != nil {
		return nil, fmt.Errorf("epoch manager: refreshing pnl: %w", err)
	}
	distributable := cloneOrZero(profit)
	fees := big.NewInt(0)
	if e.poolFeeBps > 0 && distributable.Sign() > 0 {
		fees.Mul(distributable, new(big.Int).SetUint64(e.poolFeeBps))
		fees.Quo(fees, big.NewInt(10_000))
		distributable.Sub(distributable, fees)
		next.AccruedFees = new(big.Int).Add(next.AccruedFees, fees)
	}
	if err = e.distributeProfit(next, distributable); err != nil {
		return nil, err
	}
	liquidity.Sub(liquidity, next.AccruedFees)
	if liquidity.Sign() < 0 {
		liquidity.SetInt64(0)
	}
	layers, err := e.lossWaterfall(next, coverTransfers)
	if err != nil {
		return nil, err
	}
	if loss != nil && loss.Sign() > 0 {
		tranche.ApplyLoss(loss, layers)
	}
	if recovery != nil && recovery.Sign() > 0 {
		tranche.ApplyRecovery(recovery, layers)
	}

	// Steps 3 and 4: settle redemptions, senior before junior, each bounded
	// by the remaining liquidity; junior additionally bounded by the ratio
	// constraint.
	seniorShares, seniorAmount, err := e.settleTranche(next, SeniorTranche, liquidity)
	if err != nil {
		return nil, err
	}
	withdrawn.Add(withdrawn, seniorAmount)
	juniorShares, juniorAmount, err := e.settleTranche(next, JuniorTranche, liquidity)
	if err != nil {
		return nil, err
	}
	withdrawn.Add(withdrawn, juniorAmount)

	unprocessed := new(big.Int).Add(
		next.price(SeniorTranche).AssetsForShares(next.Senior.PendingShares()),
		next.price(JuniorTranche).AssetsForShares(next.Junior.PendingShares()),
	)

	// Step 5: open the next epoch and commit.
	opened := &Epoch{
		ID:      closed.ID + 1,
		EndTime: calendar.StartDateOfNextPeriod(e.settings.PayPeriodDuration, now),
	}
	next.Current = opened
	next.Senior.StartEpoch(opened.ID)
	next.Junior.StartEpoch(opened.ID)

	if err = e.state.PutPoolState(next); err != nil {
		return nil, err
	}

	e.emitter.Emit(EpochClosed{
		EpochID:           closed.ID,
		SeniorAssets:      new(big.Int).Set(next.Assets.Senior),
		SeniorPrice:       sharePriceRat(next.price(SeniorTranche)),
		JuniorAssets:      new(big.Int).Set(next.Assets.Junior),
		JuniorPrice:       sharePriceRat(next.price(JuniorTranche)),
		UnprocessedAmount: unprocessed,
	})
	e.emitter.Emit(EpochStarted{EpochID: opened.ID, EndTime: opened.EndTime})

	return &CloseSummary{
		Epoch:                 closed.Clone(),
		Profit:                cloneOrZero(profit),
		Loss:                  cloneOrZero(loss),
		LossRecovery:          cloneOrZero(recovery),
		SeniorSharesProcessed: seniorShares,
		SeniorAmountProcessed: seniorAmount,
		JuniorSharesProcessed: juniorShares,
		JuniorAmountProcessed: juniorAmount,
		UnprocessedAmount:     unprocessed,
		PoolFeesAccrued:       fees,
	}, nil
}

// distributeProfit applies the risk-adjusted profit split, carving the
// covers' yield slice out of the junior allocation.
func (e *Engine) distributeProfit(state *PoolState, profit *big.Int) error {
	if profit == nil || profit.Sign() <= 0 {
		return nil
	}
	seniorProfit, juniorProfit := tranche.CalcProfitForRiskAdjustedPolicy(profit, state.Assets, e.lpConfig.TranchesRiskAdjustmentBps)

	coverInfos := make([]tranche.CoverProfitInfo, len(e.covers))
	for i, cover := range e.covers {
		assets, err := cover.TotalAssets()
		if err != nil {
			return err
		}
		coverInfos[i] = tranche.CoverProfitInfo{
			Assets:                 assets,
			RiskYieldMultiplierBps: cover.Config().RiskYieldMultiplierBps,
		}
	}
	remainingJunior, coverProfits := tranche.CalcProfitForFirstLossCovers(juniorProfit, state.Assets.Junior, coverInfos)

	state.Assets.Senior = new(big.Int).Add(state.Assets.Senior, seniorProfit)
	state.Assets.Junior = new(big.Int).Add(state.Assets.Junior, remainingJunior)
	for i, cover := range e.covers {
		if err := cover.DistributeProfit(coverProfits[i]); err != nil {
			return err
		}
	}
	return nil
}

// meteredLayer wraps a cover's absorption layer and accumulates the net asset
// value the cover exchanged with the pool safe. Absorbed losses move value
// into the safe, recoveries pull it back out.
type meteredLayer struct {
	inner      tranche.AbsorptionLayer
	safeInflow *big.Int
}

func (l *meteredLayer) Name() string { return l.inner.Name() }

func (l *meteredLayer) Absorb(loss *big.Int) (*big.Int, *big.Int) {
	absorbed, remaining := l.inner.Absorb(loss)
	l.safeInflow.Add(l.safeInflow, absorbed)
	return absorbed, remaining
}

func (l *meteredLayer) Recover(recovery *big.Int) (*big.Int, *big.Int) {
	recovered, remaining := l.inner.Recover(recovery)
	l.safeInflow.Sub(l.safeInflow, recovered)
	return recovered, remaining
}

// lossWaterfall assembles the ordered absorption layers: first-loss covers in
// registration order, then the junior tranche, then the senior tranche.
// Recovery iterates the same list in reverse. Each cover layer is metered so
// a failed close can reverse its safe transfers exactly.
func (e *Engine) lossWaterfall(state *PoolState, transfers []*big.Int) ([]tranche.AbsorptionLayer, error) {
	layers := make([]tranche.AbsorptionLayer, 0, len(e.covers)+2)
	for i, cover := range e.covers {
		layers = append(layers, &meteredLayer{inner: cover.Layer(), safeInflow: transfers[i]})
	}
	layers = append(layers,
		tranche.NewTrancheLayer(tranche.LayerJunior, state.Assets.Junior, state.Losses.Junior),
		tranche.NewTrancheLayer(tranche.LayerSenior, state.Assets.Senior, state.Losses.Senior),
	)
	return layers, nil
}

// settleTranche advances the tranche's redemption queue against liquidity.
// The junior pass additionally enforces the min-junior-asset constraint
// minJuniorAssets = ceil(seniorAssets / maxSeniorJuniorRatio). The liquidity
// budget is debited in place.
func (e *Engine) settleTranche(state *PoolState, t Tranche, liquidity *big.Int) (*big.Int, *big.Int, error) {
	assetBudget := new(big.Int).Set(liquidity)
	if t == JuniorTranche {
		minJunior := ceilDiv(state.Assets.Senior, new(big.Int).SetUint64(uint64(e.lpConfig.MaxSeniorJuniorRatio)))
		headroom := new(big.Int).Sub(state.Assets.Junior, minJunior)
		if headroom.Sign() < 0 {
			headroom.SetInt64(0)
		}
		if assetBudget.Cmp(headroom) > 0 {
			assetBudget.Set(headroom)
		}
	}

	price := state.price(t)
	shareBudget := price.SharesForAssets(assetBudget)
	shares, amount := state.tracker(t).Settle(shareBudget, price)
	if shares.Sign() == 0 {
		return shares, amount, nil
	}

	if err := e.safe.Withdraw(amount); err != nil {
		return nil, nil, fmt.Errorf("epoch manager: settling %s tranche: %w", t, err)
	}
	if t == SeniorTranche {
		state.Assets.Senior = new(big.Int).Sub(state.Assets.Senior, amount)
		state.SeniorSupply = new(big.Int).Sub(state.SeniorSupply, shares)
	} else {
		state.Assets.Junior = new(big.Int).Sub(state.Assets.Junior, amount)
		state.JuniorSupply = new(big.Int).Sub(state.JuniorSupply, shares)
	}
	liquidity.Sub(liquidity, amount)
	return shares, amount, nil
}

func (e *Engine) checkPoolOwnerLiquidity(caller gethcommon.Address, t Tranche, shares *big.Int, state *PoolState) error {
	if e.vault == nil || t != JuniorTranche || caller != e.poolOwner {
		return nil
	}
	min := e.lpConfig.PoolOwnerMinJuniorWei
	if min == nil || min.Sign() == 0 {
		return nil
	}
	held := e.vault.SharesOf(JuniorTranche, caller)
	if held == nil {
		held = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(held, shares)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	value := state.price(JuniorTranche).AssetsForShares(remaining)
	if value.Cmp(min) < 0 {
		return ErrPoolOwnerNotEnoughLiquidity
	}
	return nil
}

func (e *Engine) startNewEpoch() error {
	if e.state == nil {
		return errNilState
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	next := state.Clone()

	var id uint64 = 1
	if next.Current != nil {
		id = next.Current.ID + 1
	}
	now := e.clock.Now().UTC()
	opened := &Epoch{
		ID:      id,
		EndTime: calendar.StartDateOfNextPeriod(e.settings.PayPeriodDuration, now),
	}
	next.Current = opened
	next.Senior.StartEpoch(opened.ID)
	next.Junior.StartEpoch(opened.ID)

	if err := e.state.PutPoolState(next); err != nil {
		return err
	}
	e.emitter.Emit(EpochStarted{EpochID: opened.ID, EndTime: opened.EndTime})
	return nil
}

func (e *Engine) loadState() (*PoolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, err := e.state.GetPoolState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = NewPoolState()
	}
	state.ensureDefaults()
	return state, nil
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b *big.Int) *big.Int {
	if a == nil || a.Sign() <= 0 || b == nil || b.Sign() <= 0 {
		return big.NewInt(0)
	}
	sum := new(big.Int).Add(a, new(big.Int).Sub(b, big.NewInt(1)))
	return sum.Quo(sum, b)
}

func sharePriceRat(p tranche.SharePrice) *big.Rat {
	if p.Supply == nil || p.Supply.Sign() == 0 || p.Assets == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(p.Assets, p.Supply)
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
