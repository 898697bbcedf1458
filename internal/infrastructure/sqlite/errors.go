package sqlite

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %v", domain.ErrDuplicateIdentifier, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %v", domain.ErrManagerReference, err)
	}

	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrFull:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
