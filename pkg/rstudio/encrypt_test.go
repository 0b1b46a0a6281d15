package rstudio

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testPrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(fmt.Sprintf("failed to generate test key: %v", err))
		}
		testKey = key
	})
	return testKey
}

// publicKeyBody renders a key the way RStudio's auth-public-key endpoint does.
func publicKeyBody(key *rsa.PrivateKey) string {
	return fmt.Sprintf("%x:%x", big.NewInt(int64(key.E)), key.N)
}

func decryptV(t *testing.T, key *rsa.PrivateKey, v string) string {
	t.Helper()
	ciphertext, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		t.Fatalf("ciphertext is not base64: %v", err)
	}
	plaintext, err := rsa.DecryptPKCS1v15(nil, key, ciphertext)
	if err != nil {
		t.Fatalf("failed to decrypt ciphertext: %v", err)
	}
	return string(plaintext)
}

func TestPassword(t *testing.T) {
	t.Parallel()

	got := Password("i-123", "s3cr3t")
	if got != "f9d9c2aa87028b5f9fad797e8ef6f50f1f47eb43f27f95148533d9f039135ad0" {
		t.Fatalf("unexpected password: %q", got)
	}
	if again := Password("i-123", "s3cr3t"); again != got {
		t.Fatalf("password is not deterministic: %q vs %q", got, again)
	}

	seen := map[string]string{}
	inputs := [][2]string{
		{"i-123", "s3cr3t"},
		{"i-124", "s3cr3t"},
		{"i-123", "s3cr3u"},
		{"", "i-123s3cr3t!"},
	}
	for _, in := range inputs {
		p := Password(in[0], in[1])
		if len(p) != 64 || strings.ToLower(p) != p {
			t.Fatalf("password for %v is not lowercase hex sha256: %q", in, p)
		}
		key := in[0] + "|" + in[1]
		for prev, prevPassword := range seen {
			if prevPassword == p {
				t.Fatalf("password collision between %q and %q", prev, key)
			}
		}
		seen[key] = p
	}

	// Instance ID and secret are joined without a delimiter.
	if Password("i-12", "3s3cr3t") != Password("i-123", "s3cr3t") {
		t.Fatal("expected passwords for equal concatenations to match")
	}
}

func TestCredentialBlob(t *testing.T) {
	t.Parallel()

	if got := CredentialBlob(Username, "abc"); got != "rstudio-user\nabc" {
		t.Fatalf("unexpected blob: %q", got)
	}
}

func TestParseKeyMaterial(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		body         string
		wantExponent int64
		wantModulus  string
		wantErr      string
	}{
		{
			name:         "hex pair",
			body:         "10001:abcdef",
			wantExponent: 0x10001,
			wantModulus:  "abcdef",
		},
		{
			name:         "trailing newline",
			body:         "10001:ABCDEF\n",
			wantExponent: 0x10001,
			wantModulus:  "abcdef",
		},
		{
			name:    "no separator",
			body:    "10001abcdef",
			wantErr: "no exponent/modulus separator",
		},
		{
			name:    "empty modulus",
			body:    "10001:",
			wantErr: "empty exponent or modulus",
		},
		{
			name:    "empty exponent",
			body:    ":abcdef",
			wantErr: "empty exponent or modulus",
		},
		{
			name:    "splits on first colon only",
			body:    "10001:abc:def",
			wantErr: "modulus is not hex",
		},
		{
			name:    "negative modulus",
			body:    "10001:-abcdef",
			wantErr: "modulus must be positive",
		},
		{
			name:    "zero modulus",
			body:    "10001:0",
			wantErr: "modulus must be positive",
		},
		{
			name:    "exponent not hex",
			body:    "xyz:abcdef",
			wantErr: "exponent is not hex",
		},
		{
			name:    "html error page",
			body:    "<html>gateway timeout</html>",
			wantErr: "no exponent/modulus separator",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			km, err := ParseKeyMaterial(tc.body)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				if !errors.Is(err, ErrProtocol) {
					t.Fatalf("expected protocol error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKeyMaterial returned error: %v", err)
			}
			if km.Exponent.Int64() != tc.wantExponent {
				t.Fatalf("unexpected exponent: %v", km.Exponent)
			}
			if km.Modulus.Text(16) != tc.wantModulus {
				t.Fatalf("unexpected modulus: %s", km.Modulus.Text(16))
			}
		})
	}
}

func TestEncryptRoundTrip(t *testing.T) {
	t.Parallel()

	key := testPrivateKey(t)
	km, err := ParseKeyMaterial(publicKeyBody(key))
	if err != nil {
		t.Fatalf("ParseKeyMaterial returned error: %v", err)
	}

	blob := CredentialBlob(Username, Password("i-123", "s3cr3t"))
	v, err := Encrypt(blob, km)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		t.Fatalf("ciphertext is not base64: %v", err)
	}
	if len(raw) != key.Size() {
		t.Fatalf("expected %d byte ciphertext, got %d", key.Size(), len(raw))
	}
	if got := decryptV(t, key, v); got != blob {
		t.Fatalf("decrypted blob mismatch: %q", got)
	}
}

func TestEncryptRejectsUnusableKeys(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		km   KeyMaterial
	}{
		{
			name: "modulus too small for the blob",
			km:   mustParse(t, "65537:ABCDEF"),
		},
		{
			name: "exponent too large",
			km:   KeyMaterial{Exponent: new(big.Int).Lsh(big.NewInt(1), 40), Modulus: testPrivateKey(t).N},
		},
		{
			name: "missing modulus",
			km:   KeyMaterial{Exponent: big.NewInt(65537)},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Encrypt(CredentialBlob(Username, Password("i-123", "s3cr3t")), tc.km)
			if err == nil {
				t.Fatal("expected encryption error but got nil")
			}
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("expected protocol error, got %v", err)
			}
		})
	}
}

func mustParse(t *testing.T, body string) KeyMaterial {
	t.Helper()
	km, err := ParseKeyMaterial(body)
	if err != nil {
		t.Fatalf("ParseKeyMaterial(%q) returned error: %v", body, err)
	}
	return km
}
