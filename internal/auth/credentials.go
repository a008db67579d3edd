// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore verifies the configured operator credentials. The
// password is bcrypt-hashed at startup so login requests never compare
// against the plaintext.
type CredentialStore struct {
	username     string
	passwordHash []byte
}

// NewCredentialStore hashes and holds the operator credentials.
func NewCredentialStore(username, password string) (*CredentialStore, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &CredentialStore{
		username:     username,
		passwordHash: hash,
	}, nil
}

// Verify checks a username/password pair. Both comparisons are
// constant-time so a mismatch reveals nothing about which field failed.
func (s *CredentialStore) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}
