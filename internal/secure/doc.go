// Package secure holds Conjur session tokens in locked memory.
//
// A session token is a bearer credential: anyone holding its bytes can read
// every variable the identity is permitted to read until it expires. This
// package keeps the token in a memguard LockedBuffer so that it is:
//
//   - Protected from swapping via mlock
//   - Guarded against overflow by guard pages
//   - Overwritten with zeros on Destroy
//
// # Usage
//
//	token, err := secure.NewSessionToken(body) // body is wiped
//	if err != nil {
//	    return err
//	}
//	defer token.Destroy()
//
//	header, err := token.AuthorizationHeader()
//
// # Platform Behavior
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When mlock fails,
// memguard continues with ordinary memory. The zeroing on Destroy still
// applies.
//
// It does NOT protect against an attacker with access to the running
// process, or against copies the HTTP stack makes while sending the header.
package secure
