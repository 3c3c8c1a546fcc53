package hash

import (
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{
			name:     "valid password",
			password: "SecurePass123!",
		},
		{
			name:     "short password",
			password: "abc",
		},
		{
			name:     "unicode password",
			password: "pässwörd-ünïcode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := Hash(tt.password)
			if err != nil {
				t.Errorf("Hash() unexpected error = %v", err)
				return
			}

			if hash == "" {
				t.Error("Hash() returned empty hash")
			}

			if hash == tt.password {
				t.Error("Hash() returned unhashed password")
			}

			if !strings.HasPrefix(hash, "$2a$10$") {
				t.Errorf("Hash() invalid bcrypt format, got = %s", hash[:10])
			}
		})
	}
}

func TestHashDifferentOutputs(t *testing.T) {
	password := "SamePassword123!"

	hash1, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	hash2, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("Hash() should generate different hashes for same password (salt)")
	}
}

func TestVerify(t *testing.T) {
	password := "MySecurePassword123!"
	hash, err := Hash(password)
	if err != nil {
		t.Fatalf("Failed to generate hash: %v", err)
	}

	tests := []struct {
		name           string
		hashedPassword string
		password       string
		want           bool
	}{
		{
			name:           "correct password",
			hashedPassword: hash,
			password:       password,
			want:           true,
		},
		{
			name:           "incorrect password",
			hashedPassword: hash,
			password:       "WrongPassword",
			want:           false,
		},
		{
			name:           "empty password",
			hashedPassword: hash,
			password:       "",
			want:           false,
		},
		{
			name:           "case sensitive",
			hashedPassword: hash,
			password:       strings.ToUpper(password),
			want:           false,
		},
		{
			name:           "malformed hash",
			hashedPassword: "not-a-bcrypt-hash",
			password:       password,
			want:           false,
		},
		{
			name:           "empty hash",
			hashedPassword: "",
			password:       password,
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.password, tt.hashedPassword); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyRejectsOtherPasswordsHash(t *testing.T) {
	passwords := []string{"secret123", "secret124", "Secret123", "secret123 "}

	hashes := make([]string, len(passwords))
	for i, p := range passwords {
		h, err := Hash(p)
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", p, err)
		}
		hashes[i] = h
	}

	for i, p := range passwords {
		for j, h := range hashes {
			if got := Verify(p, h); got != (i == j) {
				t.Errorf("Verify(%q, hash(%q)) = %v", p, passwords[j], got)
			}
		}
	}
}

func TestCompareReturnsError(t *testing.T) {
	hash, err := Hash("password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := Compare(hash, "password"); err != nil {
		t.Errorf("Compare() unexpected error = %v", err)
	}
	if err := Compare(hash, "other"); err == nil {
		t.Error("Compare() expected error but got none")
	}
}

func BenchmarkHash(b *testing.B) {
	password := "BenchmarkPassword123!"

	for i := 0; i < b.N; i++ {
		_, err := Hash(password)
		if err != nil {
			b.Fatalf("Hash() error = %v", err)
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	password := "BenchmarkPassword123!"
	hash, _ := Hash(password)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = Verify(password, hash)
	}
}
