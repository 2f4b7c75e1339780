package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "sqlstate 23505")
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
