// Package redisidp is a self-hosted [goRecovery.IdentityProvider] backed by
// Redis.
//
// Users are looked up through a [Directory]. One-time codes and reset links
// are delivered through a [Courier]. Neither the code nor the link secret is
// stored: Redis holds SHA-256 digests with an attempt counter and a TTL.
//
// A confirmed code yields a signed, single-use reset grant (see package jwt)
// carried in [goRecovery.ConfirmedIdentity.Token]. SetCredential verifies
// the grant, redeems its jti once, hashes the new password with Argon2id and
// writes the hash back to the Directory.
//
// Failures are returned as *goRecovery.ProviderError with one of the Code*
// constants and a message fit for display.
package redisidp
