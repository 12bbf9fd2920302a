package server

import (
	"errors"
	"math/big"
	"sync"
)

// SettableFeed is an operator-maintained sqrt-price source. The price is
// pushed over the admin surface; until the first push the feed reports an
// error so collateral-dependent operations refuse to run on a stale default.
type SettableFeed struct {
	mu    sync.RWMutex
	price *big.Int
}

var errNoPrice = errors.New("server: sqrt price not published yet")

func NewSettableFeed() *SettableFeed {
	return &SettableFeed{}
}

// SqrtPriceX96 returns the latest published Q64.96 sqrt price.
func (f *SettableFeed) SqrtPriceX96() (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == nil {
		return nil, errNoPrice
	}
	return new(big.Int).Set(f.price), nil
}

// Publish replaces the feed value.
func (f *SettableFeed) Publish(price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return errors.New("server: sqrt price must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = new(big.Int).Set(price)
	return nil
}
