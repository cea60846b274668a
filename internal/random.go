package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"
)

const (
	resetCodeMin = 100000
	resetCodeMax = 999999

	regNoPrefix = "STD-"
	regNoMin    = 1000
	regNoMax    = 9999
)

// NewResetCode returns a uniformly random six-digit decimal code in [100000, 999999].
func NewResetCode() (string, error) {
	n, err := randomInRange(resetCodeMin, resetCodeMax)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// NewRegNo returns a candidate student registration number of the form STD-NNNN.
// Uniqueness is enforced by the store, callers retry on collision.
func NewRegNo() (string, error) {
	n, err := randomInRange(regNoMin, regNoMax)
	if err != nil {
		return "", err
	}
	return regNoPrefix + strconv.FormatInt(n, 10), nil
}

// RandomDuration returns a duration drawn uniformly from [min, max].
func RandomDuration(min, max time.Duration) (time.Duration, error) {
	if min < 0 || max < min {
		return 0, errors.New("invalid duration range")
	}
	if max == min {
		return min, nil
	}
	n, err := randomInRange(int64(min), int64(max))
	if err != nil {
		return 0, err
	}
	return time.Duration(n), nil
}

func randomInRange(lo, hi int64) (int64, error) {
	if hi < lo {
		return 0, errors.New("invalid random range")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return 0, err
	}
	return lo + n.Int64(), nil
}
