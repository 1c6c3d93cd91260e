package domain

import (
	"testing"
	"time"
)

func TestTokenRecord_Expired(t *testing.T) {
	now := time.Now().UTC()
	r := &TokenRecord{ExpiresAt: now}

	if !r.Expired(now) {
		t.Error("record expiring exactly now should be expired")
	}
	if r.Expired(now.Add(-time.Second)) {
		t.Error("record should not be expired before ExpiresAt")
	}
	if !r.Expired(now.Add(time.Second)) {
		t.Error("record should be expired after ExpiresAt")
	}
}

func TestSplitRefresh(t *testing.T) {
	id, secret, ok := SplitRefresh(FormatRefresh("rec-1", "s3cret"))
	if !ok || id != "rec-1" || secret != "s3cret" {
		t.Errorf("SplitRefresh round trip: got id=%q secret=%q ok=%v", id, secret, ok)
	}

	for _, bad := range []string{"", "nodot", ".secret", "id.", "."} {
		if _, _, ok := SplitRefresh(bad); ok {
			t.Errorf("SplitRefresh(%q) should not be ok", bad)
		}
	}
}
