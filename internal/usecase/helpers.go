package usecase

import (
	"errors"

	domainErrors "github.com/richstorm00/saas-starter/internal/domain/errors"
	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
)

func isNotFound(err error) bool {
	return errors.Is(err, domainErrors.ErrUserNotFound) || apperrors.CodeOf(err) == apperrors.ErrNotFound
}
