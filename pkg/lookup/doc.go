// Package lookup retrieves one secret from Conjur.
//
// A Lookuper resolves configuration and identity, resolves CA certificate
// material, authenticates with exactly one method and reads one variable.
// Cleanup is guaranteed on every path: the session token is zeroed and any
// temporary certificate file is removed before Run returns.
//
// # Usage
//
//	l := &lookup.Lookuper{}
//	res, err := l.Run(ctx, lookup.Request{
//	    Path:         "prod/db/password",
//	    ApplianceURL: "https://conjur.example.com",
//	    Account:      "myorg",
//	})
//	if err != nil {
//	    return err
//	}
//	use(res.Value)
//
// With AsFile the value is written to a new 0600 file instead, preferably on
// /dev/shm, and Result.FilePath names it. The caller owns that file.
//
// # Concurrency
//
// A Lookuper holds no per-request state; Run may be called from multiple
// goroutines.
package lookup
