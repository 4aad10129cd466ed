package pkg

import "errors"

var (
	// Manifest errors 📋
	ErrInvalidManifest = errors.New("❌ invalid manifest")

	// Integrity errors 🔒
	ErrVerificationFailed = errors.New("❌ archive verification failed")
)
