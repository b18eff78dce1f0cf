package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	// errors
	ErrNotFound             = errors.New("User not found")
	ErrUserExists           = errors.New("User already exists")
	ErrInvalidResetPassword = errors.New("invalid password reset link")
	ErrRoleTooHigh          = errors.New("not enough rights to set this role")
	ErrOwnRole              = errors.New("you cannot change your own role")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrUserExists when another User (not in excludedIDs) uses email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on the QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	ServiceInterface interface {
		Register(ctx context.Context, nu NewUser, validate *validator.Validate) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile, validate *validator.Validate) (User, error)
		SetRole(ctx context.Context, by, usr User, role string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword, validate *validator.Validate) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.Server.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if errors.Cause(err) == ErrUserExists {
			return core.NewValidationError(ErrUserExists)
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Register validates and creates a new User, then sends them a welcome email.
func (svc *Service) Register(ctx context.Context, nu NewUser, validate *validator.Validate) (User, error) {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

// Create creates a User without validation, it is meant for trusted input.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		Phone:     nu.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrUserExists {
			return User{}, core.NewValidationError(ErrUserExists)
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error) {
	if filter != nil {
		filter.Clean()
	}
	page.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering, page)
}

func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile, validate *validator.Validate) (User, error) {
	up.Clean(usr)
	if err := validate.Struct(up); err != nil {
		return User{}, err
	}

	usr.Name = up.Name
	if up.Phone != nil {
		usr.Phone = *up.Phone
	}
	if up.Avatar != nil {
		usr.Avatar = *up.Avatar
	}
	if up.Bio != nil {
		usr.Bio = *up.Bio
	}
	if up.Password != "" {
		if err := usr.SetPassword(up.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRole changes the role of usr. Admins cannot change their own role nor grant a role above theirs.
func (svc *Service) SetRole(ctx context.Context, by, usr User, role string) (User, error) {
	if by.ID == usr.ID {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: ErrOwnRole.Error()})
	}
	if RolePriority(role) > RolePriority(by.Role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: ErrRoleTooHigh.Error()})
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset mails a password reset link to the User with that email, if any.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword, validate *validator.Validate) error {
	if err := validate.Struct(data); err != nil {
		return err
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetPassword)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrInvalidResetPassword)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrInvalidResetPassword)
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to Elimu",
		TemplateName: "welcome",
		TemplateData: map[string]string{"Name": usr.Name},
	})
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
}
