package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/requestdata"
	"github.com/reelpost/reelpost-backend/internal/types"
	"github.com/reelpost/reelpost-backend/internal/utils"
)

type JWTClaims struct {
	Role      string `json:"role,omitempty"`
	GuestName string `json:"guest_name,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) error
	LoginUser(ctx context.Context, email, password string) (string, *types.User, error)

	// IssueGuestToken completes the guest identity-capture step: once a
	// guest declares name + email they get a token whose subject is
	// guest-{email} for the rest of their session.
	IssueGuestToken(ctx context.Context, name, email string) (string, types.Identity, error)

	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	serviceLog := baseLog.With("service", "AuthService")
	return &authService{
		db:           db,
		log:          serviceLog,
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
	user.Email = utils.NormalizeEmail(user.Email)
	if user.Email == "" || user.Password == "" {
		return apierr.InvalidState("email and password are required")
	}
	if user.Role == "" {
		user.Role = types.RoleClient
	}
	if !user.Role.Valid() {
		return apierr.InvalidState("unknown role %q", user.Role)
	}

	existing, err := as.userRepo.GetByEmail(ctx, nil, user.Email)
	if err != nil {
		return apierr.From(err)
	}
	if existing != nil {
		return apierr.InvalidState("email %s is already registered", user.Email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return apierr.From(fmt.Errorf("hash password: %w", err))
	}
	user.Password = string(hashed)

	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user.ID = uuid.New()
		if _, cErr := as.userRepo.Create(ctx, tx, []*types.User{user}); cErr != nil {
			return fmt.Errorf("Failed to create user in postgres: %w", cErr)
		}
		return nil
	})
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, *types.User, error) {
	email = utils.NormalizeEmail(email)

	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return "", nil, apierr.From(err)
	}
	if user == nil {
		return "", nil, apierr.Unauthorized("invalid email or password")
	}
	if hErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); hErr != nil {
		return "", nil, apierr.Unauthorized("invalid email or password")
	}

	token, gErr := as.generateAccessToken(user.Identity())
	if gErr != nil {
		return "", nil, apierr.From(gErr)
	}
	return token, user, nil
}

func (as *authService) IssueGuestToken(ctx context.Context, name, email string) (string, types.Identity, error) {
	identity := types.GuestIdentity(name, email)
	if err := identity.Validate(); err != nil {
		return "", types.Identity{}, apierr.InvalidState("guest identity capture: %v", err)
	}
	token, err := as.generateAccessToken(identity)
	if err != nil {
		return "", types.Identity{}, apierr.From(err)
	}
	return token, identity, nil
}

func (as *authService) generateAccessToken(identity types.Identity) (string, error) {
	claims := JWTClaims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Key(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if identity.Kind == types.IdentityGuest {
		claims.Role = string(types.RoleGuest)
		claims.GuestName = identity.GuestName
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("Failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("Invalid or expired JWT token")
	}

	identity, err := identityFromClaims(claims)
	if err != nil {
		return ctx, err
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		Identity:    identity,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func identityFromClaims(claims *JWTClaims) (types.Identity, error) {
	const guestPrefix = "guest-"
	if len(claims.Subject) > len(guestPrefix) && claims.Subject[:len(guestPrefix)] == guestPrefix {
		email := claims.Subject[len(guestPrefix):]
		return types.GuestIdentity(claims.GuestName, email), nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return types.Identity{}, fmt.Errorf("Invalid user id in token: %w", err)
	}
	return types.UserIdentity(userID, types.UserRole(claims.Role)), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
