package pkg

import "errors"

var (
	// Verification errors 🔒
	ErrVerificationFailed = errors.New("❌ verification failed")
	ErrUnexpectedChecksum = errors.New("❌ descriptor checksum differs from the expected value")
)
