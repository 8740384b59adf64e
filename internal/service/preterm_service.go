package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

const pretermNamespace = "preterm"

type pretermNotifier interface {
	NotifyPretermToken(ctx context.Context, address, token string, expires time.Time) error
}

// PretermConfig configures priority signup tokens.
type PretermConfig struct {
	Secret string
	TTL    time.Duration
}

// PretermService issues and validates priority signup tokens. A token binds a mail address;
// it is not consumed on use.
type PretermService struct {
	cfg       PretermConfig
	notifier  pretermNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPretermService constructs a PretermService.
func NewPretermService(cfg PretermConfig, notifier pretermNotifier, validate *validator.Validate, logger *zap.Logger) *PretermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	return &PretermService{cfg: cfg, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Issue signs a token for the requested mail address and mails it.
func (s *PretermService) Issue(ctx context.Context, req dto.PretermTokenRequest) (*dto.PretermTokenResponse, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preterm token payload")
	}
	address := req.Mail
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.cfg.TTL)
	claims := models.PretermClaims{
		Namespace: pretermNamespace,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign preterm token")
	}

	resp := &dto.PretermTokenResponse{Mail: address, Token: token, ExpiresAt: expiresAt.Format(time.RFC3339)}
	if s.notifier != nil {
		if err := s.notifier.NotifyPretermToken(ctx, address, token, expiresAt); err != nil {
			s.logger.Warn("preterm token mail not queued", zap.String("mail", address), zap.Error(err))
		} else {
			resp.Mailed = true
		}
	}
	return resp, nil
}

// Validate returns the mail address bound to token.
func (s *PretermService) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &models.PretermClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid preterm token")
	}
	claims, ok := parsed.Claims.(*models.PretermClaims)
	if !ok || !parsed.Valid || claims.Namespace != pretermNamespace || claims.Subject == "" {
		return "", appErrors.Clone(appErrors.ErrInvalidToken, "invalid preterm token claims")
	}
	return claims.Subject, nil
}
