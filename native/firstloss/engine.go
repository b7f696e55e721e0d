package firstloss

import (
	"errors"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"tranchepool/core/events"
	nativecommon "tranchepool/native/common"
)

var (
	errNilState = errors.New("first-loss engine: state not configured")
	errNilSafe  = errors.New("first-loss engine: pool safe not configured")

	// ErrNotPool is returned when a coverage operation is attempted by a
	// caller other than the authorized pool component.
	ErrNotPool = errors.New("first-loss engine: caller is not the pool")
	// ErrZeroAmountProvided is returned when a deposit or redemption carries
	// no value.
	ErrZeroAmountProvided = errors.New("first-loss engine: zero amount provided")
	// ErrZeroAddressProvided is returned when a zero address stands in for a
	// provider or receiver.
	ErrZeroAddressProvided = errors.New("first-loss engine: zero address provided")
	// ErrInsufficientSharesForRequest is returned when a provider redeems
	// more shares than it holds.
	ErrInsufficientSharesForRequest = errors.New("first-loss engine: insufficient shares for request")
	// ErrInsufficientAmountForRequest is returned when the requested shares
	// convert to no redeemable value.
	ErrInsufficientAmountForRequest = errors.New("first-loss engine: insufficient amount for request")
	// ErrPoolIsNotReadyForFirstLossCoverWithdrawal is returned when a
	// redemption would leave the cover below its capacity requirement while
	// the pool still depends on it.
	ErrPoolIsNotReadyForFirstLossCoverWithdrawal = errors.New("first-loss engine: pool is not ready for cover withdrawal")
	// ErrNotAllProvidersPaidOut is returned when a pool teardown runs while
	// the cover still carries outstanding provider shares.
	ErrNotAllProvidersPaidOut = errors.New("first-loss engine: not all providers paid out")
	// ErrLessThanRequiredCover is returned when a provider's balance would
	// fall below its individual cover requirement.
	ErrLessThanRequiredCover = errors.New("first-loss engine: less than required cover")
)

const moduleName = "firstloss"

// engineState abstracts persistence of the cover's accounting state.
type engineState interface {
	GetCoverState(name string) (*State, error)
	PutCoverState(name string, state *State) error
}

// PoolSafe moves value between the cover and the pool's liquidity safe.
type PoolSafe interface {
	// ReceiveFromCover credits the pool safe with assets released by the
	// cover while absorbing a loss.
	ReceiveFromCover(amount *big.Int)
	// ReturnToCover debits the pool safe for assets flowing back to the
	// cover during a loss recovery.
	ReturnToCover(amount *big.Int) error
}

// PoolView exposes the pool lifecycle flags the cover engine consults.
type PoolView interface {
	IsReadyForFirstLossCoverWithdrawal() bool
}

// Engine manages one first-loss cover: provider share accounting, loss
// absorption up to the configured rate and cap, and recovery bookkeeping.
type Engine struct {
	name    string
	state   engineState
	safe    PoolSafe
	pool    PoolView
	emitter events.Emitter
	config  Config
	caller  gethcommon.Address
	pauses  nativecommon.PauseView
}

// NewEngine constructs a cover engine identified by name (e.g. "borrower",
// "admin") with the authorized pool caller address.
func NewEngine(name string, poolCaller gethcommon.Address, config Config) *Engine {
	return &Engine{
		name:    name,
		caller:  poolCaller,
		config:  config.Clone(),
		emitter: events.NoopEmitter{},
	}
}

// Name returns the cover identifier.
func (e *Engine) Name() string { return e.name }

// Config returns a copy of the cover configuration.
func (e *Engine) Config() Config { return e.config.Clone() }

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPoolSafe wires the engine to the pool's liquidity safe.
func (e *Engine) SetPoolSafe(safe PoolSafe) { e.safe = safe }

// SetPoolView wires the engine to the pool lifecycle flags.
func (e *Engine) SetPoolView(view PoolView) { e.pool = view }

// SetPauses wires the protocol pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// DepositCover adds provider capital to the cover and mints shares at the
// current NAV. The minted share count is returned.
func (e *Engine) DepositCover(provider gethcommon.Address, assets *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if provider == (gethcommon.Address{}) {
		return nil, ErrZeroAddressProvided
	}
	if assets == nil || assets.Sign() <= 0 {
		return nil, ErrZeroAmountProvided
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}

	shares := new(big.Int).Set(assets)
	if state.TotalShares.Sign() > 0 && state.TotalAssets.Sign() > 0 {
		shares.Mul(assets, state.TotalShares)
		shares.Quo(shares, state.TotalAssets)
	}
	if shares.Sign() == 0 {
		return nil, ErrInsufficientAmountForRequest
	}

	state.TotalAssets = new(big.Int).Add(state.TotalAssets, assets)
	state.TotalShares = new(big.Int).Add(state.TotalShares, shares)
	balance := state.Providers[provider]
	if balance == nil {
		balance = big.NewInt(0)
	}
	state.Providers[provider] = new(big.Int).Add(balance, shares)

	if err := e.state.PutCoverState(e.name, state); err != nil {
		return nil, err
	}
	e.emitter.Emit(CoverDeposited{Cover: e.name, Provider: provider, Assets: assets, Shares: shares})
	return shares, nil
}

// RedeemCover burns provider shares and releases the corresponding assets to
// the receiver. While the pool depends on the cover, redemptions that would
// drop the balance below the capacity requirement are refused.
func (e *Engine) RedeemCover(provider gethcommon.Address, shares *big.Int, receiver gethcommon.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if provider == (gethcommon.Address{}) || receiver == (gethcommon.Address{}) {
		return nil, ErrZeroAddressProvided
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrZeroAmountProvided
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	balance := state.Providers[provider]
	if balance == nil || balance.Cmp(shares) < 0 {
		return nil, ErrInsufficientSharesForRequest
	}
	if state.TotalShares.Sign() == 0 {
		return nil, ErrInsufficientSharesForRequest
	}

	assets := new(big.Int).Mul(shares, state.TotalAssets)
	assets.Quo(assets, state.TotalShares)
	if assets.Sign() == 0 {
		return nil, ErrInsufficientAmountForRequest
	}

	remaining := new(big.Int).Sub(state.TotalAssets, assets)
	if !e.readyForWithdrawal() && e.config.MinCoverAssetsWei != nil && remaining.Cmp(e.config.MinCoverAssetsWei) < 0 {
		return nil, ErrPoolIsNotReadyForFirstLossCoverWithdrawal
	}

	state.TotalAssets = remaining
	state.TotalShares = new(big.Int).Sub(state.TotalShares, shares)
	newBalance := new(big.Int).Sub(balance, shares)
	if newBalance.Sign() == 0 {
		delete(state.Providers, provider)
	} else {
		state.Providers[provider] = newBalance
	}

	if err := e.state.PutCoverState(e.name, state); err != nil {
		return nil, err
	}
	e.emitter.Emit(CoverRedeemed{Cover: e.name, Provider: provider, Receiver: receiver, Assets: assets, Shares: shares})
	return assets, nil
}

// CoverLoss absorbs up to the configured rate and cap of the incoming loss,
// releasing the absorbed value to the pool safe. The unabsorbed remainder is
// returned for the tranches to take. Only the authorized pool caller may
// invoke coverage.
func (e *Engine) CoverLoss(caller gethcommon.Address, loss *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if caller != e.caller {
		return nil, ErrNotPool
	}
	return e.coverLoss(loss)
}

// RecoverLoss pulls recovered value back from the pool safe, reducing the
// covered loss. The amount actually recovered is returned. Only the
// authorized pool caller may invoke recovery.
func (e *Engine) RecoverLoss(caller gethcommon.Address, recovery *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if caller != e.caller {
		return nil, ErrNotPool
	}
	return e.recoverLoss(recovery)
}

// DistributeProfit accrues a yield slice to the cover's NAV. Profit raises
// the asset balance without minting shares, so every provider's NAV grows
// proportionally.
func (e *Engine) DistributeProfit(profit *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if profit == nil || profit.Sign() <= 0 {
		return nil
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	state.TotalAssets = new(big.Int).Add(state.TotalAssets, profit)
	return e.state.PutCoverState(e.name, state)
}

// IsSufficient reports whether the provider's asset-equivalent balance meets
// its individual cover requirement against the pool's liquidity cap and
// current value.
func (e *Engine) IsSufficient(provider gethcommon.Address, liquidityCap, poolValue *big.Int) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	state, err := e.loadState()
	if err != nil {
		return false, err
	}
	balance := state.Providers[provider]
	if balance == nil || state.TotalShares.Sign() == 0 {
		return e.requiredProviderAssets(liquidityCap, poolValue).Sign() == 0, nil
	}
	assetValue := new(big.Int).Mul(balance, state.TotalAssets)
	assetValue.Quo(assetValue, state.TotalShares)
	return assetValue.Cmp(e.requiredProviderAssets(liquidityCap, poolValue)) >= 0, nil
}

// TotalAssets returns the cover's current asset balance.
func (e *Engine) TotalAssets() (*big.Int, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(state.TotalAssets), nil
}

// CoveredLoss returns the cumulative loss the cover currently carries.
func (e *Engine) CoveredLoss() (*big.Int, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(state.CoveredLoss), nil
}

// AssertProvidersPaidOut verifies every provider has redeemed out of the
// cover. Pool teardown requires it for each registered cover.
func (e *Engine) AssertProvidersPaidOut() error {
	state, err := e.loadState()
	if err != nil {
		return err
	}
	if state.TotalShares.Sign() != 0 {
		return ErrNotAllProvidersPaidOut
	}
	return nil
}

// SnapshotState returns a deep copy of the cover's current state, for use as
// a rollback checkpoint around multi-engine settlement passes.
func (e *Engine) SnapshotState() (*State, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// RestoreState writes a previously captured snapshot back, discarding every
// mutation made since it was taken.
func (e *Engine) RestoreState(state *State) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.PutCoverState(e.name, state)
}

// SharesOf returns the provider's share balance.
func (e *Engine) SharesOf(provider gethcommon.Address) (*big.Int, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	balance := state.Providers[provider]
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (e *Engine) coverLoss(loss *big.Int) (*big.Int, error) {
	if e.safe == nil {
		return nil, errNilSafe
	}
	if loss == nil || loss.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}

	covered := new(big.Int).Mul(loss, new(big.Int).SetUint64(e.config.CoverRateBps))
	covered.Quo(covered, basisPoints)
	if headroom := e.capHeadroom(state); headroom != nil && covered.Cmp(headroom) > 0 {
		covered.Set(headroom)
	}
	if covered.Cmp(state.TotalAssets) > 0 {
		covered.Set(state.TotalAssets)
	}
	if covered.Sign() == 0 {
		return new(big.Int).Set(loss), nil
	}

	state.TotalAssets = new(big.Int).Sub(state.TotalAssets, covered)
	state.CoveredLoss = new(big.Int).Add(state.CoveredLoss, covered)
	if err := e.state.PutCoverState(e.name, state); err != nil {
		return nil, err
	}
	e.safe.ReceiveFromCover(covered)

	remaining := new(big.Int).Sub(loss, covered)
	e.emitter.Emit(LossCovered{Cover: e.name, Covered: covered, Remaining: remaining, CoveredLoss: state.CoveredLoss})
	return remaining, nil
}

func (e *Engine) recoverLoss(recovery *big.Int) (*big.Int, error) {
	if e.safe == nil {
		return nil, errNilSafe
	}
	if recovery == nil || recovery.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}

	recovered := new(big.Int).Set(recovery)
	if recovered.Cmp(state.CoveredLoss) > 0 {
		recovered.Set(state.CoveredLoss)
	}
	if recovered.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.safe.ReturnToCover(recovered); err != nil {
		return nil, err
	}

	state.TotalAssets = new(big.Int).Add(state.TotalAssets, recovered)
	state.CoveredLoss = new(big.Int).Sub(state.CoveredLoss, recovered)
	if err := e.state.PutCoverState(e.name, state); err != nil {
		return nil, err
	}
	e.emitter.Emit(LossRecovered{Cover: e.name, Recovered: recovered, CoveredLoss: state.CoveredLoss})
	return recovered, nil
}

// capHeadroom returns how much additional loss the cover may still absorb
// under its cumulative cap, or nil when no cap is configured.
func (e *Engine) capHeadroom(state *State) *big.Int {
	if e.config.CoverCapWei == nil || e.config.CoverCapWei.Sign() == 0 {
		return nil
	}
	headroom := new(big.Int).Sub(e.config.CoverCapWei, state.CoveredLoss)
	if headroom.Sign() < 0 {
		headroom.SetInt64(0)
	}
	return headroom
}

func (e *Engine) requiredProviderAssets(liquidityCap, poolValue *big.Int) *big.Int {
	required := big.NewInt(0)
	if liquidityCap != nil && e.config.PoolCapCoverageBps > 0 {
		byCap := new(big.Int).Mul(liquidityCap, new(big.Int).SetUint64(e.config.PoolCapCoverageBps))
		byCap.Quo(byCap, basisPoints)
		required = byCap
	}
	if poolValue != nil && e.config.PoolValueCoverageBps > 0 {
		byValue := new(big.Int).Mul(poolValue, new(big.Int).SetUint64(e.config.PoolValueCoverageBps))
		byValue.Quo(byValue, basisPoints)
		if byValue.Cmp(required) > 0 {
			required = byValue
		}
	}
	return required
}

func (e *Engine) readyForWithdrawal() bool {
	return e.pool != nil && e.pool.IsReadyForFirstLossCoverWithdrawal()
}

func (e *Engine) loadState() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, err := e.state.GetCoverState(e.name)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = NewState()
	}
	state.ensureDefaults()
	return state, nil
}

var basisPoints = big.NewInt(10_000)
