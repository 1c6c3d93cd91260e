package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Explicit route overrides where the derived name would be misleading.
var routeOverrides = map[string]ActionResource{
	"POST /v1/auth/mfa/verify":         {Action: "mfa_verify", Resource: "mfa"},
	"POST /v1/auth/mfa/push/respond":   {Action: "mfa_push_respond", Resource: "mfa"},
	"GET /v1/auth/mfa/status":          {Action: "mfa_status", Resource: "mfa"},
	"POST /v1/auth/device/bind":        {Action: "device_bind", Resource: "device"},
	"POST /v1/auth/compliance/accept":  {Action: "compliance_accept", Resource: "compliance"},
	"POST /v1/auth/compliance/decline": {Action: "compliance_decline", Resource: "compliance"},
	"POST /v1/oauth/introspect":        {Action: "introspect", Resource: "token"},
	"POST /v1/oauth/revoke":            {Action: "revoke", Resource: "token"},
}

// ParseRoute returns action and resource for an HTTP method and path
// (e.g. POST /v1/auth/login -> login on resource auth). Unversioned or
// unknown paths map to unknown/unknown.
func ParseRoute(method, path string) ActionResource {
	if ar, ok := routeOverrides[method+" "+path]; ok {
		return ar
	}
	// Path format: /v1/<resource>/<action...>
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	resource := parts[1]
	action := strings.Join(parts[2:], "_")
	if action == "" {
		action = strings.ToLower(method)
	}
	return ActionResource{Action: action, Resource: resource}
}
