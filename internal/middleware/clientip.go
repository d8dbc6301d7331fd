package middleware

import (
	"fmt"
	"net/http"

	"github.com/realclientip/realclientip-go"
)

// ClientIPStrategy picks the address the rate limiter keys on.
//
// TRUSTED HOPS:
//   - 0 → the server faces clients directly; only the TCP peer counts and
//     forwarding headers are ignored
//   - N → N reverse proxies in front, each appending the address it received
//     the request from to X-Forwarded-For. The client is the Nth entry from
//     the right. Entries further left were written by the client and never
//     count. A header with fewer than N entries falls back to the TCP peer.
func ClientIPStrategy(trustedHops int) (realclientip.Strategy, error) {
	if trustedHops < 0 {
		return nil, fmt.Errorf("trusted proxy hops must not be negative, got %d", trustedHops)
	}
	if trustedHops == 0 {
		return realclientip.RemoteAddrStrategy{}, nil
	}

	forwarded, err := realclientip.NewRightmostTrustedCountStrategy("X-Forwarded-For", trustedHops)
	if err != nil {
		return nil, fmt.Errorf("building client ip strategy: %w", err)
	}
	return realclientip.NewChainStrategy(forwarded, realclientip.RemoteAddrStrategy{}), nil
}

// ClientIP replaces RemoteAddr with the address strategy picks, so the
// request log and the rate limiter see the same client. The port is dropped.
func ClientIP(strategy realclientip.Strategy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := strategy.ClientIP(r.Header, r.RemoteAddr); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}
