// Package domain holds helpers shared by the choperia domain packages.
package domain

import "math"

// RoundMoney rounds v to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// FallbackUserID is attributed to operations performed without an
// authenticated user.
const FallbackUserID int64 = 1
