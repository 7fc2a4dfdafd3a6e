// Package store implements the persistent user store backing the HTTP
// admin surface: a SQLite-backed table of operator accounts used for
// bearer-token login, independent of the RDCleanPath session path.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rdcleanpath/gateway/internal/authn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RoleAdmin and RoleUser are the only two values User.Role may hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// defaultUsername and defaultPassword seed the first account created on an
// empty database, matching the bootstrap behavior of the original service.
const (
	defaultUsername   = "root"
	defaultPassword   = "Koder@123"
	defaultDisplay    = "Administrador"
)

// ErrNotFound is returned when a lookup by ID or username matches no row.
var ErrNotFound = errors.New("store: user not found")

// User is a row in the users table, including the password hash. Handlers
// in internal/httpapi must call Public before returning a User over the
// wire.
type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string `gorm:"not null;default:''"`
	Role         string `gorm:"not null;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName pins the GORM table name so it matches the schema the original
// service's hand-written CREATE TABLE used.
func (User) TableName() string { return "users" }

// PublicUser is the representation returned over HTTP: everything except
// PasswordHash.
type PublicUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Public strips the password hash for API responses.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Store wraps a GORM handle scoped to the users table.
type Store struct {
	db *gorm.DB
}

// Open creates the database file's parent directory if needed, opens the
// SQLite file at path, and runs AutoMigrate. It does not seed the default
// account; call Bootstrap for that.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Bootstrap seeds a default admin account when the users table is empty,
// mirroring the original service's first-run behavior. It returns whether
// an account was created.
func (s *Store) Bootstrap() (bool, error) {
	var count int64
	if err := s.db.Model(&User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := authn.HashPassword(defaultPassword)
	if err != nil {
		return false, err
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     defaultUsername,
		PasswordHash: hash,
		DisplayName:  defaultDisplay,
		Role:         RoleAdmin,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}

// GetByUsername returns ErrNotFound if no row matches.
func (s *Store) GetByUsername(username string) (User, error) {
	var u User
	err := s.db.Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByID returns ErrNotFound if no row matches.
func (s *Store) GetByID(id string) (User, error) {
	var u User
	err := s.db.Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	return u, err
}

// List returns every user ordered by creation time, oldest first.
func (s *Store) List() ([]User, error) {
	var users []User
	err := s.db.Order("created_at").Find(&users).Error
	return users, err
}

// Create hashes password and inserts a new user row.
func (s *Store) Create(username, password, displayName, role string) (User, error) {
	hash, err := authn.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
	}
	if err := s.db.Create(&u).Error; err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateFields is the set of optionally-present fields Update may change.
type UpdateFields struct {
	DisplayName *string
	Role        *string
	Password    *string
}

// Update applies only the non-nil fields of fields, returning ErrNotFound
// if id does not exist.
func (s *Store) Update(id string, fields UpdateFields) (User, error) {
	updates := map[string]any{}
	if fields.DisplayName != nil {
		updates["display_name"] = *fields.DisplayName
	}
	if fields.Role != nil {
		updates["role"] = *fields.Role
	}
	if fields.Password != nil {
		hash, err := authn.HashPassword(*fields.Password)
		if err != nil {
			return User{}, err
		}
		updates["password_hash"] = hash
	}

	if len(updates) > 0 {
		res := s.db.Model(&User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return User{}, res.Error
		}
	}
	return s.GetByID(id)
}

// UpdatePassword hashes newPassword and stores it for id.
func (s *Store) UpdatePassword(id, newPassword string) error {
	hash, err := authn.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.Model(&User{}).Where("id = ?", id).Update("password_hash", hash).Error
}

// Delete removes the row with id, reporting whether one was removed.
func (s *Store) Delete(id string) (bool, error) {
	res := s.db.Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
