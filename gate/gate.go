// Package gate holds the per-request admission filters: the address gate
// deciding which callers may reach the API at all, and the cross-origin
// filter for browser calls. Both are constructed from immutable configuration
// at startup; nothing here reads ambient state during a request.
package gate

import (
	"context"
	"log"
	"net/http"

	"visionlink/ipaddr"
)

// connectPath is always admitted: unregistered nodes must be able to
// bootstrap an identity before their address is approved.
const connectPath = "/nodes/connect"

// ApprovedSource yields the dynamically approved address set. Satisfied by
// *nodestate.Manager.
type ApprovedSource interface {
	ApprovedAddresses(ctx context.Context) ([]string, error)
}

// Access admits a request iff it targets the registration endpoint, or its
// caller address is in the static allow-list or the approved-node set. When
// the approved-set fetch fails the gate fails open: availability wins over
// strict enforcement, and the error is logged.
func Access(staticAllow []string, source ApprovedSource) func(http.Handler) http.Handler {
	static := make(map[string]bool, len(staticAllow))
	for _, a := range staticAllow {
		static[ipaddr.Normalize(a)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == connectPath {
				next.ServeHTTP(w, r)
				return
			}

			caller := ipaddr.FromRequest(r.RemoteAddr)
			if static[caller] {
				next.ServeHTTP(w, r)
				return
			}

			approved, err := source.ApprovedAddresses(r.Context())
			if err != nil {
				log.Printf("gate: fetch approved nodes: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			for _, a := range approved {
				if ipaddr.Normalize(a) == caller {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "Error access denied, you do not have permission to access this resource.", http.StatusForbidden)
		})
	}
}
