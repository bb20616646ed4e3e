package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stderrors "errors"

	"github.com/honeynil/mdd-api/internal/infrastructure/kafka"
	"github.com/honeynil/mdd-api/internal/models"
	"github.com/honeynil/mdd-api/internal/repository"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const tracerName = "mdd-api/services"

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// UpdateProfileInput holds the fields to change; nil leaves a field as is.
type UpdateProfileInput struct {
	Email    *string
	Username *string
	Password *string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (string, error)
	Login(ctx context.Context, usernameOrEmail, password string) (string, error)
	Me(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpdateMe(ctx context.Context, userID int64, in UpdateProfileInput) (string, error)
}

type TokenIssuer interface {
	Issue(login string, userID int64) (string, error)
}

type authService struct {
	userRepo         repository.UserRepository
	subscriptionRepo repository.SubscriptionRepository
	tokens           TokenIssuer
	events           EventPublisher
	hashCost         int
}

func NewAuthService(
	userRepo repository.UserRepository,
	subscriptionRepo repository.SubscriptionRepository,
	tokens TokenIssuer,
	events EventPublisher,
) *authService {
	return &authService{
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		tokens:           tokens,
		events:           publisherOrNoop(events),
		hashCost:         bcrypt.DefaultCost,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "AuthService.Register")
	defer span.End()

	v := pkgerrors.NewValidationError()
	checkEmail(v, in.Email)
	checkUsername(v, in.Username)
	checkPassword(v, in.Password)
	if err := v.OrNil(); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return "", err
	}

	if err := s.ensureAvailable(ctx, in.Email, in.Username); err != nil {
		span.SetStatus(codes.Error, "user already exists")
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to hash password", "username", in.Username, "error", err)
		return "", fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if isConflict(err) {
			return "", err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user", "username", in.Username, "error", err)
		return "", fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	s.events.Publish(ctx, kafka.TopicUsers, kafka.EventUserRegistered, user.ID, kafka.UserRegistered{
		EventType: kafka.EventUserRegistered,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: time.Now().UTC(),
	})

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, usernameOrEmail, password string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "AuthService.Login")
	defer span.End()

	v := pkgerrors.NewValidationError()
	if strings.TrimSpace(usernameOrEmail) == "" {
		v.Add("usernameOrEmail", "usernameOrEmail is required")
	}
	if strings.TrimSpace(password) == "" {
		v.Add("password", "password is required")
	}
	if err := v.OrNil(); err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByEmailOrUsername(ctx, usernameOrEmail)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			slog.Warn("login for unknown user", "login", usernameOrEmail)
			return "", pkgerrors.ErrInvalidCredentials
		}
		span.RecordError(err)
		slog.Error("failed to look up user", "login", usernameOrEmail, "error", err)
		return "", fmt.Errorf("%w: failed to look up user", pkgerrors.ErrInternal)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("invalid password", "user_id", user.ID)
		span.SetStatus(codes.Error, "invalid credentials")
		return "", pkgerrors.ErrInvalidCredentials
	}

	slog.Info("user logged in", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID int64) (*models.UserProfile, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	subs, err := s.subscriptionRepo.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	profile := &models.UserProfile{
		UserID:        user.ID,
		Email:         user.Email,
		Username:      user.Username,
		Subscriptions: make([]models.SubscriptionView, 0, len(subs)),
	}
	for _, sub := range subs {
		profile.Subscriptions = append(profile.Subscriptions, models.SubscriptionView{
			SubscriptionID:     sub.ID,
			SubjectID:          sub.Subject.ID,
			SubjectName:        sub.Subject.Name,
			SubjectDescription: sub.Subject.Description,
		})
	}
	return profile, nil
}

// UpdateMe applies the non-nil fields and returns a token for the updated
// account, since the email carried as login may have changed.
func (s *authService) UpdateMe(ctx context.Context, userID int64, in UpdateProfileInput) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "AuthService.UpdateMe")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	v := pkgerrors.NewValidationError()
	if in.Email != nil {
		checkEmail(v, *in.Email)
	}
	if in.Username != nil {
		checkUsername(v, *in.Username)
	}
	changePassword := in.Password != nil && strings.TrimSpace(*in.Password) != ""
	if changePassword {
		checkPassword(v, *in.Password)
	}
	if err := v.OrNil(); err != nil {
		return "", err
	}

	if in.Email != nil && *in.Email != user.Email {
		taken, err := s.userRepo.ExistsByEmail(ctx, *in.Email)
		if err != nil {
			return "", fmt.Errorf("%w: failed to check email", pkgerrors.ErrInternal)
		}
		if taken {
			return "", pkgerrors.ErrEmailTaken
		}
		user.Email = *in.Email
	}
	if in.Username != nil && *in.Username != user.Username {
		taken, err := s.userRepo.ExistsByUsername(ctx, *in.Username)
		if err != nil {
			return "", fmt.Errorf("%w: failed to check username", pkgerrors.ErrInternal)
		}
		if taken {
			return "", pkgerrors.ErrUsernameTaken
		}
		user.Username = *in.Username
	}
	if changePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.hashCost)
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if isConflict(err) {
			return "", err
		}
		span.RecordError(err)
		slog.Error("failed to update user", "user_id", userID, "error", err)
		return "", fmt.Errorf("%w: failed to update user", pkgerrors.ErrInternal)
	}

	slog.Info("user profile updated", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) ensureAvailable(ctx context.Context, email, username string) error {
	taken, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: failed to check email", pkgerrors.ErrInternal)
	}
	if taken {
		return pkgerrors.ErrEmailTaken
	}

	taken, err = s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: failed to check username", pkgerrors.ErrInternal)
	}
	if taken {
		return pkgerrors.ErrUsernameTaken
	}
	return nil
}

func (s *authService) issue(user *models.User) (string, error) {
	token, err := s.tokens.Issue(user.Email, user.ID)
	if err != nil {
		slog.Error("failed to issue token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to issue token", pkgerrors.ErrInternal)
	}
	return token, nil
}

func isConflict(err error) bool {
	return stderrors.Is(err, pkgerrors.ErrEmailTaken) ||
		stderrors.Is(err, pkgerrors.ErrUsernameTaken) ||
		stderrors.Is(err, pkgerrors.ErrUserAlreadyExists)
}
