// Package firebase adapts the Firebase Identity Toolkit (v3 relying-party
// API) to [goRecovery.IdentityProvider].
//
// Phone challenges require a reCAPTCHA token obtained by the client; attach
// it to the request context with [WithRecaptchaToken] before SubmitPhone.
package firebase
