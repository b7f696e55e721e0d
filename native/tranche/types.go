package tranche

import "math/big"

var basisPoints = big.NewInt(10_000)

// Assets captures the asset split between the two tranches of a pool. Amount
// values are denominated in the pool's underlying token and expressed as big
// integers to preserve on-ledger precision.
type Assets struct {
	// Senior is the total asset value of the senior tranche.
	Senior *big.Int
	// Junior is the total asset value of the junior tranche.
	Junior *big.Int
}

// NewAssets constructs an asset pair, treating nil inputs as zero.
func NewAssets(senior, junior *big.Int) *Assets {
	a := &Assets{Senior: big.NewInt(0), Junior: big.NewInt(0)}
	if senior != nil {
		a.Senior = new(big.Int).Set(senior)
	}
	if junior != nil {
		a.Junior = new(big.Int).Set(junior)
	}
	return a
}

// Clone returns a deep copy of the asset pair.
func (a *Assets) Clone() *Assets {
	if a == nil {
		return nil
	}
	return NewAssets(a.Senior, a.Junior)
}

// Total returns senior plus junior assets.
func (a *Assets) Total() *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	total := new(big.Int)
	if a.Senior != nil {
		total.Add(total, a.Senior)
	}
	if a.Junior != nil {
		total.Add(total, a.Junior)
	}
	return total
}

// Losses tracks the outstanding loss attributed to each tranche. A tranche's
// loss shrinks as recoveries arrive.
type Losses struct {
	Senior *big.Int
	Junior *big.Int
}

// NewLosses constructs a loss pair, treating nil inputs as zero.
func NewLosses(senior, junior *big.Int) *Losses {
	l := &Losses{Senior: big.NewInt(0), Junior: big.NewInt(0)}
	if senior != nil {
		l.Senior = new(big.Int).Set(senior)
	}
	if junior != nil {
		l.Junior = new(big.Int).Set(junior)
	}
	return l
}

// Clone returns a deep copy of the loss pair.
func (l *Losses) Clone() *Losses {
	if l == nil {
		return nil
	}
	return NewLosses(l.Senior, l.Junior)
}

// SharePrice expresses an LP token price as the assets/supply pair so that
// conversions never round through an intermediate quotient.
type SharePrice struct {
	Assets *big.Int
	Supply *big.Int
}

// AssetsForShares converts a share count into its asset value at this price.
// Division truncates toward zero so the pool keeps the remainder.
func (p SharePrice) AssetsForShares(shares *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 || p.Assets == nil || p.Supply == nil || p.Supply.Sign() == 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(shares, p.Assets)
	return amount.Quo(amount, p.Supply)
}

// SharesForAssets converts an asset amount into shares at this price,
// truncating toward zero.
func (p SharePrice) SharesForAssets(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || p.Assets == nil || p.Assets.Sign() == 0 || p.Supply == nil {
		return big.NewInt(0)
	}
	shares := new(big.Int).Mul(amount, p.Supply)
	return shares.Quo(shares, p.Assets)
}
