package audit

import "testing"

func TestParseRoute(t *testing.T) {
	cases := []struct {
		method, path string
		want         ActionResource
	}{
		{"POST", "/v1/auth/login", ActionResource{Action: "login", Resource: "auth"}},
		{"POST", "/v1/auth/logout", ActionResource{Action: "logout", Resource: "auth"}},
		{"POST", "/v1/auth/refresh", ActionResource{Action: "refresh", Resource: "auth"}},
		{"POST", "/v1/auth/mfa/verify", ActionResource{Action: "mfa_verify", Resource: "mfa"}},
		{"POST", "/v1/auth/mfa/push/respond", ActionResource{Action: "mfa_push_respond", Resource: "mfa"}},
		{"GET", "/v1/auth/mfa/status", ActionResource{Action: "mfa_status", Resource: "mfa"}},
		{"POST", "/v1/auth/device/bind", ActionResource{Action: "device_bind", Resource: "device"}},
		{"POST", "/v1/auth/compliance/accept", ActionResource{Action: "compliance_accept", Resource: "compliance"}},
		{"POST", "/v1/oauth/introspect", ActionResource{Action: "introspect", Resource: "token"}},
		{"POST", "/v1/oauth/revoke", ActionResource{Action: "revoke", Resource: "token"}},
		{"GET", "/healthz", ActionResource{Action: "unknown", Resource: "unknown"}},
		{"GET", "/.well-known/jwks.json", ActionResource{Action: "unknown", Resource: "unknown"}},
	}
	for _, tc := range cases {
		got := ParseRoute(tc.method, tc.path)
		if got != tc.want {
			t.Errorf("ParseRoute(%s %s) = %+v, want %+v", tc.method, tc.path, got, tc.want)
		}
	}
}
