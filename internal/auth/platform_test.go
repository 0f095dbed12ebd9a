package auth

import "testing"

func TestGenerateSignatureDeterministic(t *testing.T) {
	a := generateSignature("key1", "1700000000", "nonce-1", `{"table_id":1}`, "secret")
	b := generateSignature("key1", "1700000000", "nonce-1", `{"table_id":1}`, "secret")
	if a != b {
		t.Fatal("same input must produce same signature")
	}
	if len(a) != 64 {
		t.Fatalf("hmac-sha256 hex length: %d", len(a))
	}

	c := generateSignature("key1", "1700000000", "nonce-1", `{"table_id":1}`, "other-secret")
	if a == c {
		t.Fatal("different secret must change signature")
	}
	d := generateSignature("key1", "1700000000", "nonce-2", `{"table_id":1}`, "secret")
	if a == d {
		t.Fatal("different nonce must change signature")
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") {
		t.Fatal("equal strings")
	}
	if secureCompare("abc", "abd") {
		t.Fatal("unequal strings")
	}
	if secureCompare("abc", "abcd") {
		t.Fatal("length mismatch")
	}
}

func TestIsIPAllowed(t *testing.T) {
	allowed := []string{"10.0.0.5", "192.168.1.0/24"}

	if !isIPAllowed("10.0.0.5", allowed) {
		t.Fatal("exact ip match")
	}
	if !isIPAllowed("192.168.1.77", allowed) {
		t.Fatal("cidr match")
	}
	if isIPAllowed("192.168.2.1", allowed) {
		t.Fatal("outside cidr")
	}
	if isIPAllowed("10.0.0.6", allowed) {
		t.Fatal("non-listed ip")
	}
	// 空白名单放行
	if !isIPAllowed("1.2.3.4", nil) {
		t.Fatal("empty allowlist must allow")
	}
}

func TestIsValidPlatformUserID(t *testing.T) {
	valid := []string{"u1", "user_001", "USER-2", "a"}
	for _, id := range valid {
		if !IsValidPlatformUserID(id) {
			t.Fatalf("id %q: want valid", id)
		}
	}

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	invalid := []string{"", "user 1", "user#1", "用户1", string(long)}
	for _, id := range invalid {
		if IsValidPlatformUserID(id) {
			t.Fatalf("id %q: want invalid", id)
		}
	}
}
