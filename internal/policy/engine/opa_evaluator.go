package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"ciam-core/backend/internal/policy/repository"
)

// Default Rego policy: step up whenever the device is not trusted, or when the
// platform mandates MFA on every login.
const defaultRegoPolicy = `package ciam.step_up

default mfa_required = false
default register_trust_after_mfa = true
default trust_ttl_days = 30

mfa_required if {
	input.platform.mfa_required_always
}

mfa_required if {
	not input.device.trusted
}

trust_ttl_days = input.platform.default_trust_ttl_days if {
	input.platform.default_trust_ttl_days > 0
}
`

// OPAEvaluator evaluates step-up policies with in-process OPA Rego. Enabled
// stored policies override the compiled-in default.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be nil,
// in which case only the built-in policy is used.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the default policy. Does not touch the policy repo or database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query("data.ciam.step_up.mfa_required"),
		rego.Compiler(compiler),
		rego.Input(buildInput(Input{})),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateMFA evaluates the step-up policy for the given login state. Policy
// load or evaluation failures fall back to safe defaults rather than failing
// the login.
func (e *OPAEvaluator) EvaluateMFA(ctx context.Context, in Input) (MFAResult, error) {
	var policies []string
	if e.policyRepo != nil {
		stored, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: failed to load stored policies: %v", err)
		} else {
			for _, p := range stored {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, buildInput(in))
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return e.defaultResult(in), nil
	}
	return result, nil
}

func buildInput(in Input) map[string]interface{} {
	return map[string]interface{}{
		"platform": map[string]interface{}{
			"mfa_required_always":    in.MFARequiredAlways,
			"default_trust_ttl_days": in.DefaultTrustTTLDays,
		},
		"device": map[string]interface{}{
			"fingerprint": in.DeviceFingerprint,
			"present":     in.DeviceFingerprint != "",
			"trusted":     in.DeviceTrusted,
		},
		"subject": map[string]interface{}{
			"has_phone": in.SubjectHasPhone,
			"has_push":  in.SubjectHasPush,
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (MFAResult, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return MFAResult{}, fmt.Errorf("compile policies: %w", err)
	}

	out := MFAResult{
		MFARequired:           false,
		RegisterTrustAfterMFA: true,
		TrustTTLDays:          30,
	}

	mfaQuery := rego.New(
		rego.Query("data.ciam.step_up.mfa_required"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	mfaRS, err := mfaQuery.Eval(ctx)
	if err == nil && len(mfaRS) > 0 && len(mfaRS[0].Expressions) > 0 {
		if v, ok := mfaRS[0].Expressions[0].Value.(bool); ok {
			out.MFARequired = v
		}
	}

	registerQuery := rego.New(
		rego.Query("data.ciam.step_up.register_trust_after_mfa"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	registerRS, err := registerQuery.Eval(ctx)
	if err == nil && len(registerRS) > 0 && len(registerRS[0].Expressions) > 0 {
		if v, ok := registerRS[0].Expressions[0].Value.(bool); ok {
			out.RegisterTrustAfterMFA = v
		}
	}

	ttlQuery := rego.New(
		rego.Query("data.ciam.step_up.trust_ttl_days"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	ttlRS, err := ttlQuery.Eval(ctx)
	if err == nil && len(ttlRS) > 0 && len(ttlRS[0].Expressions) > 0 {
		switch v := ttlRS[0].Expressions[0].Value.(type) {
		case json.Number:
			if days, err := v.Int64(); err == nil && days > 0 {
				out.TrustTTLDays = int(days)
			}
		case float64:
			if days := int(v); days > 0 {
				out.TrustTTLDays = days
			}
		case int64:
			if v > 0 {
				out.TrustTTLDays = int(v)
			}
		}
	}

	return out, nil
}

// defaultResult is the fail-safe answer when evaluation breaks: require MFA
// unless the device is already trusted.
func (e *OPAEvaluator) defaultResult(in Input) MFAResult {
	ttl := 30
	if in.DefaultTrustTTLDays > 0 {
		ttl = in.DefaultTrustTTLDays
	}
	return MFAResult{
		MFARequired:           !in.DeviceTrusted || in.MFARequiredAlways,
		RegisterTrustAfterMFA: true,
		TrustTTLDays:          ttl,
	}
}
