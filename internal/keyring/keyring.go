// Package keyring keeps streakd secrets in the OS keyring.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/streakd/internal/constants"
)

// Item names a secret stored under the streakd service
type Item string

const (
	// Database is the PostgreSQL connection string
	Database Item = constants.DefaultKeyringUser
	// JWTSecret is the shared secret used to verify bearer tokens
	JWTSecret Item = "jwt-secret"
)

var (
	// ErrNotFound is returned when the item is not in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// ParseItem maps a command-line name to an Item
func ParseItem(name string) (Item, error) {
	switch name {
	case "database", string(Database):
		return Database, nil
	case string(JWTSecret):
		return JWTSecret, nil
	default:
		return "", fmt.Errorf("unknown keyring item %q (want database or jwt-secret)", name)
	}
}

// Get reads item from the keyring
func Get(item Item) (string, error) {
	v, err := keyring.Get(constants.AppName, string(item))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

// Set stores value for item
func Set(item Item, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}
	if err := keyring.Set(constants.AppName, string(item), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", item, err)
	}
	return nil
}

// Delete removes item
func Delete(item Item) error {
	if err := keyring.Delete(constants.AppName, string(item)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", item, err)
	}
	return nil
}

// GetConnectionString retrieves the database connection string.
// Returns ErrNotFound if none is stored.
func GetConnectionString() (string, error) {
	return Get(Database)
}

// SetConnectionString stores the database connection string
func SetConnectionString(connStr string) error {
	return Set(Database, connStr)
}

// DeleteConnectionString removes the database connection string
func DeleteConnectionString() error {
	return Delete(Database)
}

// IsAvailable checks if the OS keyring can be reached. A missing probe
// entry counts as available.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
