package seeds

import (
	"strings"
	"testing"
)

func TestDerive_Deterministic(t *testing.T) {
	a := Derive(TagVault, "0xAbC123")
	b := Derive(TagVault, "0xabc123")
	if a != b {
		t.Errorf("derivation is case-sensitive: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 42 {
		t.Errorf("derived address has wrong shape: %s", a)
	}
}

func TestDerive_DistinctPerTag(t *testing.T) {
	owner := "0xowner"
	seen := map[string]string{}
	for _, tag := range []string{TagConfig, TagVault, TagAlert, TagAggressor, TagCompromised} {
		addr := Derive(tag, owner)
		if prev, ok := seen[addr]; ok {
			t.Errorf("tags %s and %s collide at %s", prev, tag, addr)
		}
		seen[addr] = tag
	}
}

func TestDerive_DomainSeparation(t *testing.T) {
	// ("ab", "c") and ("a", "bc") must not collide.
	if Derive(TagAlert, "ab", "c") == Derive(TagAlert, "a", "bc") {
		t.Error("component boundary is ambiguous")
	}
}

func TestAlertID_PerPair(t *testing.T) {
	a := AlertID("0xowner", "0xcontact1")
	b := AlertID("0xowner", "0xcontact2")
	if a == b {
		t.Error("alert IDs collide across contacts")
	}
	if a != AlertID("0xOWNER", "0xCONTACT1") {
		t.Error("alert ID is case-sensitive")
	}
}

func TestVerifyTrigger(t *testing.T) {
	secret := []byte("correct horse battery staple")
	hash := HashTrigger(secret)

	if !VerifyTrigger(secret, hash) {
		t.Error("correct secret rejected")
	}
	if VerifyTrigger([]byte("wrong"), hash) {
		t.Error("wrong secret accepted")
	}
	if VerifyTrigger(secret, hash[:31]) {
		t.Error("truncated hash accepted")
	}
}

func TestHashRoundTrip(t *testing.T) {
	hash := HashTrigger([]byte("1234"))
	encoded := EncodeHash(hash)

	decoded, ok := DecodeHash(encoded)
	if !ok {
		t.Fatal("DecodeHash rejected valid encoding")
	}
	if !VerifyTrigger([]byte("1234"), decoded) {
		t.Error("round-tripped hash does not verify")
	}

	if _, ok := DecodeHash("zz"); ok {
		t.Error("DecodeHash accepted invalid hex")
	}
	if _, ok := DecodeHash(encoded[:10]); ok {
		t.Error("DecodeHash accepted short input")
	}
	if _, ok := DecodeHash("0x" + encoded); !ok {
		t.Error("DecodeHash rejected 0x prefix")
	}
}
