package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/persiashop/storefront-backend/internal/users"
	pkgAuth "github.com/persiashop/storefront-backend/pkg/auth"
	"github.com/persiashop/storefront-backend/pkg/auth/session"
	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/security"
	"github.com/persiashop/storefront-backend/pkg/types"
)

const (
	invalidCodeMessage  = "invalid or expired code"
	invalidPhoneMessage = "invalid phone number"
	minNameLength       = 2
)

// Service is the phone/OTP login flow plus profile completion.
type Service interface {
	RequestCode(ctx context.Context, req RequestCodeRequest) (*RequestCodeResponse, error)
	VerifyCode(ctx context.Context, req VerifyCodeRequest) (*LoginResponse, error)
	CompleteProfile(ctx context.Context, userID int64, req CompleteProfileRequest) (*users.UserDTO, error)
	CurrentUser(ctx context.Context, userID int64) (*users.UserDTO, error)
}

type userRepository interface {
	GetOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, firstName, lastName string) (*models.User, error)
	CreateVerificationCode(ctx context.Context, phone, codeHash string, expiresAt time.Time) (*models.VerificationCode, error)
	DeleteUnusedCodes(ctx context.Context, phone string) error
	LatestActiveCode(ctx context.Context, phone string, now time.Time) (*models.VerificationCode, error)
	MarkCodeUsed(ctx context.Context, id int64) error
}

type sessionManager interface {
	Generate(ctx context.Context, userID int64, accessID string) (string, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	OTPConfig      config.OTPConfig
	// ExposeCode returns the plain code in RequestCode responses.
	ExposeCode bool
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	users      userRepository
	session    sessionManager
	jwtCfg     config.JWTConfig
	otpCfg     config.OTPConfig
	exposeCode bool
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.OTPConfig.CodeLength <= 0 || params.OTPConfig.CodeTTL <= 0 {
		return nil, fmt.Errorf("otp code length and ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		users:      params.UserRepo,
		session:    params.SessionManager,
		jwtCfg:     params.JWTConfig,
		otpCfg:     params.OTPConfig,
		exposeCode: params.ExposeCode,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) RequestCode(ctx context.Context, req RequestCodeRequest) (*RequestCodeResponse, error) {
	phone, ok := types.NormalizePhone(req.PhoneNumber)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidPhoneMessage)
	}

	code, err := security.GenerateNumericCode(s.otpCfg.CodeLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	hash, err := security.HashSecret(code, s.otpCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash code")
	}

	if err := s.users.DeleteUnusedCodes(ctx, phone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear previous codes")
	}
	expiresAt := s.now().Add(s.otpCfg.CodeTTL)
	if _, err := s.users.CreateVerificationCode(ctx, phone, hash, expiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store code")
	}

	if s.logg != nil {
		// SMS delivery is not wired yet; the code only leaves through the response.
		s.logg.Info(s.logg.WithField(ctx, "phone_suffix", phoneSuffix(phone)), "auth.otp.issued")
	}

	resp := &RequestCodeResponse{PhoneNumber: phone, ExpiresAt: expiresAt}
	if s.exposeCode {
		resp.Code = code
	}
	return resp, nil
}

func (s *service) VerifyCode(ctx context.Context, req VerifyCodeRequest) (*LoginResponse, error) {
	phone, ok := types.NormalizePhone(req.PhoneNumber)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidPhoneMessage)
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}

	stored, err := s.users.LatestActiveCode(ctx, phone, s.now())
	if err != nil {
		if users.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup code")
	}

	valid, err := security.VerifySecret(code, stored.CodeHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify code")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}
	if err := s.users.MarkCodeUsed(ctx, stored.ID); err != nil {
		if users.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume code")
	}

	user, created, err := s.users.GetOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, user.ID)
		s.logg.Info(s.logg.WithField(logCtx, "new_user", created), "auth.login.succeeded")
	}

	return &LoginResponse{
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		IsNewUser:         created,
		IsProfileComplete: user.IsProfileComplete,
		User:              users.FromModel(user),
	}, nil
}

func (s *service) CompleteProfile(ctx context.Context, userID int64, req CompleteProfileRequest) (*users.UserDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if utf8.RuneCountInString(first) < minNameLength || utf8.RuneCountInString(last) < minNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name must be at least 2 characters")
	}

	user, err := s.users.UpdateProfile(ctx, userID, first, last)
	if err != nil {
		if users.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return users.FromModel(user), nil
}

func (s *service) CurrentUser(ctx context.Context, userID int64) (*users.UserDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if users.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return users.FromModel(user), nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User) (string, string, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID:            user.ID,
		PhoneNumber:       user.PhoneNumber,
		IsProfileComplete: user.IsProfileComplete,
		JTI:               accessID,
	})
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, user.ID, accessID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return accessToken, refreshToken, nil
}

func phoneSuffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
