package pricing

import (
	"errors"
	"math/big"
)

// The feed reports the square root of the fiat-per-deposit-token price in
// Q64.96 fixed point. Squaring shifts the exponent to 192 fractional bits.
const sqrtPriceFractionBits = 192

// tokenUnit scales whole-token prices to wei-denominated arithmetic.
var tokenUnit = big.NewInt(1e18)

var (
	ErrNilFeed      = errors.New("pricing: price feed not configured")
	ErrZeroPrice    = errors.New("pricing: feed reported zero price")
	ErrTargetNotSet = errors.New("pricing: collateral target not configured")
)

// SqrtPriceFeed is the single external read the helper performs per call.
type SqrtPriceFeed interface {
	SqrtPriceX96() (*big.Int, error)
}

// CollateralCalculator converts the feed's square-root price into the
// deposit-token amount backing a fixed fiat collateral target.
type CollateralCalculator struct {
	feed       SqrtPriceFeed
	targetFiat *big.Int // fiat target, 1e18-scaled
}

func NewCollateralCalculator(feed SqrtPriceFeed, targetFiat *big.Int) (*CollateralCalculator, error) {
	if feed == nil {
		return nil, ErrNilFeed
	}
	if targetFiat == nil || targetFiat.Sign() <= 0 {
		return nil, ErrTargetNotSet
	}
	return &CollateralCalculator{feed: feed, targetFiat: new(big.Int).Set(targetFiat)}, nil
}

// SetTargetFiat swaps the fiat collateral target (1e18-scaled, admin path).
func (c *CollateralCalculator) SetTargetFiat(targetFiat *big.Int) error {
	if targetFiat == nil || targetFiat.Sign() <= 0 {
		return ErrTargetNotSet
	}
	c.targetFiat = new(big.Int).Set(targetFiat)
	return nil
}

// TargetFiat returns the configured 1e18-scaled fiat target.
func (c *CollateralCalculator) TargetFiat() *big.Int {
	return new(big.Int).Set(c.targetFiat)
}

// SpotPrice squares the feed's sqrt price and rescales it to 1e18-scaled fiat
// per whole deposit token.
func (c *CollateralCalculator) SpotPrice() (*big.Int, error) {
	if c == nil || c.feed == nil {
		return nil, ErrNilFeed
	}
	sqrtPrice, err := c.feed.SqrtPriceX96()
	if err != nil {
		return nil, err
	}
	if sqrtPrice == nil || sqrtPrice.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	price := new(big.Int).Mul(sqrtPrice, sqrtPrice)
	price.Mul(price, tokenUnit)
	price.Rsh(price, sqrtPriceFractionBits)
	if price.Sign() == 0 {
		return nil, ErrZeroPrice
	}
	return price, nil
}

// RequiredDeposit inverts the spot price to compute how many deposit-token
// wei satisfy the fiat target. Rounds up so the lock never undershoots the
// target by a fraction of a wei.
func (c *CollateralCalculator) RequiredDeposit() (*big.Int, error) {
	price, err := c.SpotPrice()
	if err != nil {
		return nil, err
	}
	numerator := new(big.Int).Mul(c.targetFiat, tokenUnit)
	required, remainder := new(big.Int).QuoRem(numerator, price, new(big.Int))
	if remainder.Sign() > 0 {
		required.Add(required, big.NewInt(1))
	}
	return required, nil
}
