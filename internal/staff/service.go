package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/licensehub/licensehub/internal/licensing"
)

// CreateInput is the payload for a new employee account.
type CreateInput struct {
	StaffNo      string      `json:"staffNo" validate:"required"`
	Name         string      `json:"name" validate:"required"`
	Email        string      `json:"email" validate:"required,email"`
	Phone        string      `json:"phone" validate:"required"`
	Address      string      `json:"address" validate:"required"`
	DateEmployed *civil.Date `json:"dateEmployed"`
}

// ServiceConfig tunes the staff service.
type ServiceConfig struct {
	// InitialPassword is assigned to every new account.
	InitialPassword string
	BcryptCost      int
	Location        *time.Location
	Now             func() time.Time
}

// Service handles employee business logic.
type Service struct {
	repo     Repository
	cfg      ServiceConfig
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Service{repo: repo, cfg: cfg, validate: v, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Employee, error) {
	e, err := s.repo.FindByEmail(ctx, foldEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Employee{}, ErrInvalidCredentials
		}
		return Employee{}, fmt.Errorf("staff: find by email: %w", err)
	}
	if e.Locked {
		s.logger.Info("login refused for locked account", slog.String("staff_id", e.ID.String()))
		return Employee{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(password)); err != nil {
		return Employee{}, ErrInvalidCredentials
	}
	return e, nil
}

// Lookup returns an employee by id.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (Employee, error) {
	return s.repo.FindByID(ctx, id)
}

// DisplayNames resolves staff ids to names.
func (s *Service) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return s.repo.DisplayNames(ctx, ids)
}

// List returns all employees.
func (s *Service) List(ctx context.Context, actor licensing.Actor) ([]Employee, error) {
	if actor.ID == uuid.Nil {
		return nil, licensing.ErrUnauthenticated
	}
	employees, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if employees == nil {
		employees = []Employee{}
	}
	return employees, nil
}

// Create registers an employee with the configured initial password.
func (s *Service) Create(ctx context.Context, actor licensing.Actor, in CreateInput) (Employee, error) {
	if actor.ID == uuid.Nil {
		return Employee{}, licensing.ErrUnauthenticated
	}
	e, err := s.newEmployee(in, s.cfg.InitialPassword)
	if err != nil {
		return Employee{}, err
	}
	e.UpdatedBy = actor.ID
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return Employee{}, err
	}
	s.logger.Info("employee created",
		slog.String("staff_id", created.ID.String()),
		slog.String("staff_no", created.StaffNo),
		slog.String("actor", actor.ID.String()),
	)
	return created, nil
}

// Bootstrap creates the first account when the directory is empty. It
// reports whether an account was created.
func (s *Service) Bootstrap(ctx context.Context, in CreateInput, password string) (Employee, bool, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return Employee{}, false, err
	}
	if n > 0 {
		return Employee{}, false, nil
	}
	if password == "" {
		password = s.cfg.InitialPassword
	}
	// Contact details of the first account are filled in later.
	if strings.TrimSpace(in.Phone) == "" {
		in.Phone = "-"
	}
	if strings.TrimSpace(in.Address) == "" {
		in.Address = "-"
	}
	e, err := s.newEmployee(in, password)
	if err != nil {
		return Employee{}, false, err
	}
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return Employee{}, false, err
	}
	return created, true, nil
}

func (s *Service) newEmployee(in CreateInput, password string) (Employee, error) {
	in.StaffNo = strings.TrimSpace(in.StaffNo)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = foldEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			reason := "is required"
			if fieldErrs[0].Tag() == "email" {
				reason = "must be a valid email address"
			}
			return Employee{}, &licensing.ValidationError{Field: fieldErrs[0].Field(), Reason: reason}
		}
		return Employee{}, &licensing.ValidationError{Field: "body", Reason: err.Error()}
	}
	if password == "" {
		return Employee{}, errors.New("staff: initial password not configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return Employee{}, fmt.Errorf("staff: hash password: %w", err)
	}
	now := s.cfg.Now().UTC()
	employed := civil.DateOf(now.In(s.cfg.Location))
	if in.DateEmployed != nil {
		employed = *in.DateEmployed
	}
	return Employee{
		StaffNo:      in.StaffNo,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Phone:        in.Phone,
		Address:      in.Address,
		DateEmployed: employed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func foldEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
