package engine

import "context"

// MFAResult holds the result of step-up policy evaluation for one login.
type MFAResult struct {
	MFARequired           bool
	RegisterTrustAfterMFA bool
	TrustTTLDays          int
}

// Input is the login state a step-up policy decides on.
type Input struct {
	DeviceFingerprint   string
	DeviceTrusted       bool
	SubjectHasPhone     bool
	SubjectHasPush      bool
	MFARequiredAlways   bool
	DefaultTrustTTLDays int
}

// Evaluator decides whether a login needs MFA step-up and how device trust
// should be registered afterwards.
type Evaluator interface {
	EvaluateMFA(ctx context.Context, in Input) (MFAResult, error)
}
