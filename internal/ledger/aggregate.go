package ledger

import (
	"math/bits"

	"github.com/zulandar/reputation/internal/record"
)

// average is sum/count truncated, and 0 for an empty aggregate. Every score
// is at most 100, so the quotient fits a uint8.
func average(sum, count uint64) uint8 {
	if count == 0 {
		return 0
	}
	return uint8(sum / count)
}

func addScore(rep *record.Reputation, score uint8, now int64) error {
	count, carry := bits.Add64(rep.TotalFeedbacks, 1, 0)
	if carry != 0 {
		return ErrOverflow
	}
	sum, carry := bits.Add64(rep.TotalScoreSum, uint64(score), 0)
	if carry != 0 {
		return ErrOverflow
	}
	rep.TotalFeedbacks = count
	rep.TotalScoreSum = sum
	rep.AverageScore = average(sum, count)
	rep.LastUpdated = now
	return nil
}

func removeScore(rep *record.Reputation, score uint8, now int64) error {
	count, borrow := bits.Sub64(rep.TotalFeedbacks, 1, 0)
	if borrow != 0 {
		return ErrUnderflow
	}
	sum, borrow := bits.Sub64(rep.TotalScoreSum, uint64(score), 0)
	if borrow != 0 {
		return ErrUnderflow
	}
	rep.TotalFeedbacks = count
	rep.TotalScoreSum = sum
	rep.AverageScore = average(sum, count)
	rep.LastUpdated = now
	return nil
}

func increment(v uint64) (uint64, error) {
	next, carry := bits.Add64(v, 1, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return next, nil
}
