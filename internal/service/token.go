package service

import "github.com/rookgm/tableorder/internal/models"

type TokenService interface {
	CreateToken(profile *models.Profile) (string, error)
	VerifyToken(tokenString string) (*models.TokenPayload, error)
}
