package domain

import (
	"testing"
	"time"
)

func TestMethod_Valid(t *testing.T) {
	for _, m := range []Method{MethodSMS, MethodVoice, MethodPush} {
		if !m.Valid() {
			t.Errorf("method %q should be valid", m)
		}
	}
	for _, m := range []Method{"", "email", "SMS"} {
		if m.Valid() {
			t.Errorf("method %q should not be valid", m)
		}
	}
}

func TestMethod_OTP(t *testing.T) {
	if !MethodSMS.OTP() || !MethodVoice.OTP() {
		t.Error("sms and voice are OTP methods")
	}
	if MethodPush.OTP() {
		t.Error("push is not an OTP method")
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("PENDING is not terminal")
	}
	for _, s := range []Status{StatusApproved, StatusRejected, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
}

func TestTransaction_Expired(t *testing.T) {
	now := time.Now().UTC()
	tx := &Transaction{ExpiresAt: now}

	if !tx.Expired(now) {
		t.Error("transaction expiring exactly now should be expired")
	}
	if tx.Expired(now.Add(-time.Second)) {
		t.Error("transaction should not be expired before ExpiresAt")
	}
}
