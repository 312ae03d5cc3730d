// Package fakes provides test doubles for the services conjurvar talks to.
//
// FakeConjur and FakeIMDS are httptest servers that speak the real wire
// protocols. The remaining fakes implement the small interfaces the
// authenticators and the configuration loader accept, so tests can run
// without cloud platforms or an OS keyring. Fakes are manually implemented
// (not generated) to provide precise control over test behavior.
//
// Usage:
//
//	conjur := fakes.NewFakeConjur()
//	defer conjur.Close()
//	conjur.SetSecret("prod/db/password", "s3cret")
//
//	kr := fakes.NewFakeKeyring()
//	kr.SetSecret(conjur.URL()+"/authn", "login", "host/app")
package fakes
