package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of digits in a passcode.
const Length = 6

var upper = big.NewInt(1_000_000)

// Generate returns a uniformly random passcode in [000000, 999999], zero-padded to six digits.
// Codes are not unique; callers scope matches to one account's usable passcodes.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generate passcode: %w", err)
	}
	return fmt.Sprintf("%0*d", Length, n.Int64()), nil
}
