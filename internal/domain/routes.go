package domain

import (
	"fmt"
	"strings"
)

// RouteCode identifies which domain callback resumes a settlement.
// The set is closed; callers pick one before requesting payment.
type RouteCode string

const (
	RouteGeneric        RouteCode = "GENERIC"
	RouteEventEntry     RouteCode = "EVENT_ENTRY"
	RouteMemberTransfer RouteCode = "MEMBER_TRANSFER"
	RouteBatch          RouteCode = "BATCH"
)

// ParseRouteCode rejects anything outside the known set. BATCH is reserved for
// multi-item checkouts and cannot be requested directly.
func ParseRouteCode(raw string) (RouteCode, error) {
	code := RouteCode(strings.ToUpper(strings.TrimSpace(raw)))
	switch code {
	case RouteGeneric, RouteEventEntry, RouteMemberTransfer:
		return code, nil
	case "":
		return RouteGeneric, nil
	}
	return "", fmt.Errorf("unknown route code: %q", raw)
}

// Route is the opaque (code, payload) pair carried across the sync/async boundary.
type Route struct {
	Code    RouteCode `json:"code"`
	Payload string    `json:"payload"`
}
