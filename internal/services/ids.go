package services

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits        = "0123456789"
	maxIDAttempts = 5

	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func randomString(charset string, length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = charset[n.Int64()]
	}
	return string(out)
}

func generateNumericCode(length int) string {
	return randomString(digits, length)
}

func newLeadID() string {
	return "LD-" + randomString(idAlphabet, 8)
}

func newWithdrawalID(now time.Time) string {
	return "WDR-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + randomString(idAlphabet, 3)
}

func newOffersID(now time.Time) string {
	return "OFF-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + randomString(idAlphabet, 4)
}

// uniqueConstraint returns the violated constraint name for a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
