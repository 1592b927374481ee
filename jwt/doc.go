// Package jwt issues and verifies short-lived password-reset grants: the
// signed proof, handed out after a one-time code is confirmed, that lets the
// holder replace one subject's credential exactly once.
package jwt
