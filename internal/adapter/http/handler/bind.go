package handler

import (
	"errors"
	"net/http"

	"bank-backoffice/internal/adapter/http/middleware"
	"bank-backoffice/internal/core/domain"
	"bank-backoffice/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// bindError maps a ShouldBind failure onto the API error it reports.
func bindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.ErrPayloadTooLarge()
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "positive_decimal" {
				return apperror.ErrInvalidAmount()
			}
		}
	}
	return apperror.Validation(err.Error())
}

func operationIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid operation id")
	}
	return id, nil
}

func mustIdentity(c *gin.Context) (domain.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.Identity{}, apperror.ErrInvalidToken()
	}
	return identity, nil
}
