package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// SchemaVersion identifies the users.json layout.
const SchemaVersion = "1.0.0"

// MaxFailedLogins is the number of failed attempts before an account locks.
const MaxFailedLogins = 5

// ErrUserNotFound is returned when a username has no account.
var ErrUserNotFound = errors.New("user not found")

// ErrAccountLocked is returned when a locked account attempts to authenticate.
var ErrAccountLocked = errors.New("account is locked")

// ErrInvalidCredentials is returned on a wrong password. Deliberately the
// same for unknown users so responses do not reveal which accounts exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStore manages operator account persistence to the filesystem.
type UserStore struct {
	dataDir  string
	lockFile *flock.Flock
}

// NewUserStore creates a user store rooted at dataDir.
func NewUserStore(dataDir string) (*UserStore, error) {
	usersDir := filepath.Join(dataDir, "users")
	if err := os.MkdirAll(usersDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	return &UserStore{
		dataDir:  dataDir,
		lockFile: flock.New(filepath.Join(usersDir, ".users.lock")),
	}, nil
}

func (s *UserStore) usersFilePath() string {
	return filepath.Join(s.dataDir, "users", "users.json")
}

// Load loads the user database from disk. A missing file yields an empty
// database, not an error.
func (s *UserStore) Load() (*UserDatabase, error) {
	filePath := s.usersFilePath()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &UserDatabase{
			Version:   SchemaVersion,
			Users:     make(map[string]User),
			UpdatedAt: time.Now(),
		}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var db UserDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return &db, nil
}

// Save saves the user database to disk with file locking and an atomic
// temp-file rename.
func (s *UserStore) Save(db *UserDatabase) error {
	locked, err := s.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return errors.New("unable to acquire lock - another process is writing")
	}
	defer s.lockFile.Unlock()

	db.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal database: %w", err)
	}

	filePath := s.usersFilePath()
	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filePath); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// GetUser retrieves a user by username
func (s *UserStore) GetUser(username string) (*User, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}
	user, exists := db.Users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// CreateUser creates a new operator account with a hashed password.
func (s *UserStore) CreateUser(username, password, role string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	db, err := s.Load()
	if err != nil {
		return nil, err
	}
	if _, exists := db.Users[username]; exists {
		return nil, errors.New("user already exists")
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	db.Users[username] = user

	if err := s.Save(db); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies a username/password pair, applying lockout after
// repeated failures. On success the failure counter resets and the login
// time is recorded.
func (s *UserStore) Authenticate(username, password string) (*User, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}

	user, exists := db.Users[username]
	if !exists {
		return nil, ErrInvalidCredentials
	}
	if user.Locked {
		return nil, ErrAccountLocked
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		user.FailedLogins++
		if user.FailedLogins >= MaxFailedLogins {
			user.Locked = true
		}
		user.UpdatedAt = time.Now()
		db.Users[username] = user
		if err := s.Save(db); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.FailedLogins = 0
	user.LastLoginAt = &now
	user.UpdatedAt = now
	db.Users[username] = user
	if err := s.Save(db); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetPassword replaces a user's password hash and unlocks the account.
func (s *UserStore) SetPassword(username, password string) error {
	db, err := s.Load()
	if err != nil {
		return err
	}
	user, exists := db.Users[username]
	if !exists {
		return ErrUserNotFound
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.FailedLogins = 0
	user.Locked = false
	user.UpdatedAt = time.Now()
	db.Users[username] = user
	return s.Save(db)
}

// DeleteUser deletes a user
func (s *UserStore) DeleteUser(username string) error {
	db, err := s.Load()
	if err != nil {
		return err
	}
	if _, exists := db.Users[username]; !exists {
		return ErrUserNotFound
	}
	delete(db.Users, username)
	return s.Save(db)
}

// ListUsers returns all users
func (s *UserStore) ListUsers() ([]User, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(db.Users))
	for _, user := range db.Users {
		users = append(users, user)
	}
	return users, nil
}

// CountUsers returns the number of users
func (s *UserStore) CountUsers() (int, error) {
	db, err := s.Load()
	if err != nil {
		return 0, err
	}
	return len(db.Users), nil
}
