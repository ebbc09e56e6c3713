package auth

import (
	"testing"
	"time"
)

func TestGenerateToken(t *testing.T) {
	user := User{
		ID:       "test-user-id",
		Username: "testuser",
		Role:     RoleAdmin,
	}

	secret := "test-secret-key-for-jwt-signing"

	tests := []struct {
		name            string
		user            User
		secret          string
		expirationHours int
		wantErr         bool
	}{
		{
			name:            "Valid token generation",
			user:            user,
			secret:          secret,
			expirationHours: 1,
			wantErr:         false,
		},
		{
			name:            "Empty secret",
			user:            user,
			secret:          "",
			expirationHours: 1,
			wantErr:         true,
		},
		{
			name:            "Long expiration",
			user:            user,
			secret:          secret,
			expirationHours: 24 * 365,
			wantErr:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.user, tt.secret, tt.expirationHours)
			if (err != nil) != tt.wantErr {
				t.Errorf("GenerateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && token == "" {
				t.Error("GenerateToken() returned empty token")
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	user := User{
		ID:       "test-user-id",
		Username: "testuser",
		Role:     RoleOperator,
	}

	secret := "test-secret-key-for-jwt-signing"

	validToken, err := GenerateToken(user, secret, 1)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}

	expiredToken, err := GenerateToken(user, secret, -1) // Negative hours = already expired
	if err != nil {
		t.Fatalf("Failed to generate expired token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr bool
	}{
		{"Valid token", validToken, secret, false},
		{"Invalid token string", "invalid.token.string", secret, true},
		{"Wrong secret", validToken, "wrong-secret", true},
		{"Empty secret", validToken, "", true},
		{"Empty token", "", secret, true},
		{"Expired token", expiredToken, secret, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if claims == nil {
				t.Fatal("ValidateToken() returned nil claims")
			}
			if claims.UserID != user.ID {
				t.Errorf("ValidateToken() UserID = %v, want %v", claims.UserID, user.ID)
			}
			if claims.Username != user.Username {
				t.Errorf("ValidateToken() Username = %v, want %v", claims.Username, user.Username)
			}
			if claims.Role != user.Role {
				t.Errorf("ValidateToken() Role = %v, want %v", claims.Role, user.Role)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	user := User{
		ID:       "round-trip-user",
		Username: "roundtripuser",
		Role:     RoleOperator,
	}

	secret := "test-secret-key-for-round-trip"

	token, err := GenerateToken(user, secret, 2)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("UserID mismatch: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.Username != user.Username {
		t.Errorf("Username mismatch: got %v, want %v", claims.Username, user.Username)
	}
	if claims.Role != user.Role {
		t.Errorf("Role mismatch: got %v, want %v", claims.Role, user.Role)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		t.Error("Token expiration is in the past or nil")
	}
	if claims.Issuer != TokenIssuer {
		t.Errorf("Issuer mismatch: got %v, want %v", claims.Issuer, TokenIssuer)
	}
}
