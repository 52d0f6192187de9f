package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate

		confirmEmail bool
		resetTokens  *tokenGenerator
		emailTokens  *tokenGenerator
		nowFunc      func() time.Time
	}
)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:         repo,
		mailSvc:      mailSvc,
		validate:     validate,
		confirmEmail: conf.Auth.ConfirmEmail,
		resetTokens:  newTokenGenerator(passwordResetSalt, conf.SecretKey, conf.Auth.PasswordResetTimeoutDelta),
		emailTokens:  newTokenGenerator(confirmEmailSalt, conf.SecretKey, conf.Auth.PasswordResetTimeoutDelta),
		nowFunc:      time.Now,
	}
}

func (svc *Service) now() time.Time {
	return svc.nowFunc().UTC().Truncate(time.Microsecond)
}

// SignUp creates a new User. When email confirmation is on, a confirmation mail is sent
// and the user stays unconfirmed; otherwise the user is confirmed right away.
func (svc *Service) SignUp(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	now := svc.now()
	usr := User{
		Email:     nu.Email,
		FullName:  nu.FullName,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !svc.confirmEmail {
		usr.Confirm(now)
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, ErrEmailExists
		}
		return User{}, errors.Wrap(err, "creating user")
	}

	if !usr.IsConfirmed() {
		svc.sendConfirmationMail(usr)
	}
	return usr, nil
}

// RequiresConfirmation reports whether sign-ups wait for an email confirmation.
func (svc *Service) RequiresConfirmation() bool {
	return svc.confirmEmail
}

// Authenticate checks the credentials of a User and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsConfirmed() {
		return User{}, ErrEmailNotConfirmed
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := svc.now()
	usr.LastLogin = &now
	usr.UpdatedAt = now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) getByUID(ctx context.Context, uid string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidToken
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

// ConfirmEmail confirms the email address of the User matching the uid & token pair.
func (svc *Service) ConfirmEmail(ctx context.Context, data ConfirmEmail) (User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	usr, err := svc.getByUID(ctx, data.UID)
	if err != nil {
		return User{}, err
	}
	if usr.IsConfirmed() {
		return usr, nil
	}
	if err = svc.emailTokens.verifyToken(usr, data.Token); err != nil {
		return User{}, ErrInvalidToken
	}

	now := svc.now()
	usr.Confirm(now)
	usr.UpdatedAt = now
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset mails a password reset link to the User owning email.
// redirectTo is the client URL the link points at.
func (svc *Service) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr, redirectTo)
	return nil
}

// ResetPassword sets a new password for the User matching the uid & token pair.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	usr, err := svc.getByUID(ctx, data.UID)
	if err != nil {
		return User{}, err
	}
	if err = svc.resetTokens.verifyToken(usr, data.Token); err != nil {
		return User{}, ErrInvalidToken
	}
	return svc.setPassword(ctx, usr, data.Password)
}

// UpdatePassword changes the password of an authenticated User.
func (svc *Service) UpdatePassword(ctx context.Context, id, pwd string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	data := UpdatePassword{Email: usr.Email, FullName: usr.FullName, Password: pwd}
	if err = data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	return svc.setPassword(ctx, usr, pwd)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) sendConfirmationMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Confirm your email address",
		TemplateName: "confirm_signup",
		TemplateData: map[string]string{
			"Name":  usr.FullName,
			"UID":   EncodeUID(usr),
			"Token": svc.emailTokens.makeToken(usr),
		},
	})
}

func (svc *Service) sendPasswordResetMail(usr User, redirectTo string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":       usr.FullName,
			"UID":        EncodeUID(usr),
			"Token":      svc.resetTokens.makeToken(usr),
			"RedirectTo": redirectTo,
		},
	})
}
