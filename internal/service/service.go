package service

import (
	"errors"

	"github.com/hkhalili/shopflow/internal/repository"
)

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
