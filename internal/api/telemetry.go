package api

import (
	"encoding/base64"
	"net/url"
	"sync"

	"github.com/systmms/conjurvar/internal/version"
)

// TelemetryHeader carries the integration identity on every Conjur request.
const TelemetryHeader = "x-cybr-telemetry"

const (
	IntegrationName = "conjurvar"
	IntegrationType = "cybr-secretsmanager"
	VendorName      = "systmms"
)

// TelemetryValue is the header value, computed once per process.
var TelemetryValue = sync.OnceValue(func() string {
	v := url.Values{}
	v.Set("in", IntegrationName)
	v.Set("it", IntegrationType)
	v.Set("iv", version.Version)
	v.Set("vn", VendorName)

	// Encode sorts keys, which yields in, it, iv, vn.
	return base64.StdEncoding.EncodeToString([]byte(v.Encode()))
})
