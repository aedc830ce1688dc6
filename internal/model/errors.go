package model

import "errors"

var (
	// ErrDataUnavailable marks a failed node read or an empty pool.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrRevertedExecution marks an arbitrage transaction rejected on chain.
	ErrRevertedExecution = errors.New("execution reverted")
	// ErrConfiguration marks a missing or invalid setting at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrSigner marks a failure to sign or submit a transaction.
	ErrSigner = errors.New("signer error")
	// ErrLockHeld is returned when another instance holds the execution lock.
	ErrLockHeld = errors.New("execution lock held")
)
