package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/dummybank/payment-service/internal/store"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// verifyPIN checks the 4-digit transaction PIN against the stored bcrypt hash.
// A missing hash and a mismatch are indistinguishable to the caller.
func (s *Service) verifyPIN(ctx context.Context, userID int64, pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPINFormat
	}

	hash, err := s.repo.GetUserPINHash(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrPINNotSet) || errors.Is(err, store.ErrUserNotFound) {
			return ErrInvalidCredential
		}
		return fmt.Errorf("failed to load pin hash: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}
