package domain

import (
	"net/url"
	"strings"
	"time"
)

// Tenant is one independently configured blog served by the platform.
// Sessions and permissions are scoped per tenant.
type Tenant struct {
	ID        string
	Name      string
	URL       string // canonical public URL, trailing slash included
	Host      string // request host this tenant answers for
	UpdatedAt time.Time
}

// Secure reports whether the tenant's canonical URL is served over https.
// It drives the Secure attribute of every cookie issued for this tenant.
func (t Tenant) Secure() bool {
	u, err := url.Parse(t.URL)
	if err != nil {
		return false
	}
	return u.Scheme == "https"
}

// PageURL joins a path below the tenant root. It is the single place slashes
// are reconciled, whether or not the canonical URL carries its trailing one.
func (t Tenant) PageURL(path string) string {
	return strings.TrimSuffix(t.URL, "/") + "/" + strings.TrimPrefix(path, "/")
}
