// Package password hashes replacement credentials with Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so a
// directory can re-hash them on the next successful verification.
//
// This package owns hashing, verification and the byte-length policy only.
// It never stores passwords and never logs them.
package password
