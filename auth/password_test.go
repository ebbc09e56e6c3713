package auth

import "testing"

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("SomePassword123!")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword() returned empty hash")
	}
	if hash == "SomePassword123!" {
		t.Error("HashPassword() returned the plaintext password")
	}
}

func TestCheckPasswordHash(t *testing.T) {
	password := "SomePassword123!"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}

	if !CheckPasswordHash(password, hash) {
		t.Error("CheckPasswordHash() = false for correct password")
	}
	if CheckPasswordHash("WrongPassword", hash) {
		t.Error("CheckPasswordHash() = true for wrong password")
	}
	if CheckPasswordHash(password, "not-a-hash") {
		t.Error("CheckPasswordHash() = true for malformed hash")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		minLength int
		wantErr   bool
	}{
		{"Meets minimum", "12345678", 8, false},
		{"Too short", "1234567", 8, true},
		{"Empty", "", 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.minLength)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "operator1", false},
		{"With dot and hyphen", "svc.group-sync", false},
		{"Too short", "ab", true},
		{"Invalid characters", "user name", true},
		{"Backslash", `CONTOSO\user`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
		})
	}
}
