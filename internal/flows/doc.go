// Package flows contains pure-function orchestrators for every provider-facing
// step of the recovery flow.
//
// Each flow function (RunSendResetEmail, RunIssueOTP, RunConfirmOTP,
// RunSetCredential) accepts a typed dependency struct and returns results
// without side-effects beyond those dependencies. State, stage transitions and
// the busy gate belong to the Controller; flows only time the provider call,
// classify its failure, and record metrics, audit and logs.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goRecovery (to avoid import cycles).
//   - Log or audit OTP codes, passwords or grant tokens.
package flows
