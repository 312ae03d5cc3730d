// Package conjur defines the public types shared by every part of conjurvar:
// authentication methods, identities, and the error taxonomy returned when a
// secret lookup fails.
//
// # Authentication Methods
//
// A lookup authenticates to the Conjur appliance with exactly one Method:
//
//   - MethodDefault: login + API key posted to /authn
//   - MethodAWS: signed STS GetCallerIdentity headers posted to /authn-iam
//   - MethodAzure: managed-identity access token posted to /authn-azure
//   - MethodGCP: GCE identity token posted to /authn-gcp
//   - MethodTokenFile: a pre-provisioned access token read from disk
//
// The method is selected from the configured authn type string with
// ParseMethod, or forced to MethodTokenFile when a token file is configured.
// There is no fallback between methods.
//
// # Error Handling
//
// Every failure is reported as one of the typed errors in this package so
// callers can branch with errors.As:
//
//	value, err := l.Run(ctx, req)
//	var notFound *conjur.NotFoundError
//	if errors.As(err, &notFound) {
//	    fmt.Printf("variable %s is not defined\n", notFound.Path)
//	}
//
// Error messages never contain secret values, API keys, or session tokens.
//
// # Threading and Concurrency
//
// All types in this package are plain values and safe to share between
// goroutines once constructed.
package conjur
