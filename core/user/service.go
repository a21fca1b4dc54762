package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
)

var (
	// errors
	ErrEmailExists   = errors.New("a user with this email already exists")
	ErrNotAStudent   = errors.New("user is not a student")
	ErrInvalidFilter = errors.New("invalid role filter")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	Repository interface {
		// QueryUsers returns faculty followed by students, each in insertion order.
		QueryUsers(ctx context.Context) ([]User, error)
		QueryFaculty(ctx context.Context) ([]User, error)
		QueryStudents(ctx context.Context) ([]User, error)
		GetUser(ctx context.Context, id string) (User, error)
		// CreateUser assigns a fresh ID and appends the user to its role's collection.
		CreateUser(ctx context.Context, usr User) (User, error)
		// UpdateUser replaces the user with the same ID.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteStudent removes the student and all of their experiment statuses.
		DeleteStudent(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		mailer   core.EmailService
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(repo Repository, validate *validator.Validate, mailer core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		mailer:   mailer,
		logger:   logger,
		conf:     conf,
	}
}

func (svc *Service) checkUniqueness(email string, exclUsers ...User) error {
	users, err := svc.repo.QueryUsers(context.Background())
	if err != nil {
		return err
	}
	for _, usr := range users {
		if strings.EqualFold(usr.Email, email) && !isExcluded(usr, exclUsers) {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
	}
	return nil
}

func isExcluded(usr User, exclUsers []User) bool {
	for _, ex := range exclUsers {
		if ex.ID == usr.ID {
			return true
		}
	}
	return false
}

func (svc *Service) SignupFaculty(ctx context.Context, nf NewFaculty) (User, error) {
	if err := nf.Validate(svc.validate, svc); err != nil {
		return User{}, err
	}

	now := nowFunc()
	usr := User{
		Name:      nf.Name,
		Email:     nf.Email,
		Role:      RoleFaculty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nf.Password); err != nil {
		return User{}, errors.Wrap(err, "usr.SetPassword()")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeEmail(usr, "")
	return usr, nil
}

// EnrollStudent creates a student with the default password. The student must change it on first login.
func (svc *Service) EnrollStudent(ctx context.Context, ns NewStudent) (User, error) {
	if err := ns.Validate(svc.validate, svc); err != nil {
		return User{}, err
	}

	now := nowFunc()
	usr := User{
		Name:         ns.Name,
		Email:        ns.Email,
		Role:         RoleStudent,
		IsFirstLogin: true,
		Student:      &StudentInfo{RollNumber: ns.RollNumber, SectionID: ns.SectionID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	pwd := svc.conf.Lab.DefaultStudentPassword
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "usr.SetPassword()")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeEmail(usr, pwd)
	return usr, nil
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, core.NewNotFoundError("student", id)
	}
	if err := us.Validate(usr, svc.validate, svc); err != nil {
		return User{}, err
	}

	if us.Name != "" {
		usr.Name = us.Name
	}
	if us.Email != "" {
		usr.Email = us.Email
	}
	info := *usr.Student
	if us.RollNumber != "" {
		info.RollNumber = us.RollNumber
	}
	if us.SectionID != "" {
		info.SectionID = us.SectionID
	}
	usr.Student = &info
	usr.UpdatedAt = nowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx)
}

func (svc *Service) QueryFaculty(ctx context.Context) ([]User, error) {
	return svc.repo.QueryFaculty(ctx)
}

func (svc *Service) QueryStudents(ctx context.Context) ([]User, error) {
	return svc.repo.QueryStudents(ctx)
}

// Query applies AND operation on available QueryFilter fields.
// QueryFilter.Search does a case-insensitive match on one of name, roll number or email.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()

	var (
		users []User
		err   error
	)
	switch filter.Role {
	case "":
		users, err = svc.repo.QueryUsers(ctx)
	case RoleFaculty:
		users, err = svc.repo.QueryFaculty(ctx)
	case RoleStudent:
		users, err = svc.repo.QueryStudents(ctx)
	default:
		return nil, core.NewValidationError(ErrInvalidFilter, core.FieldError{Field: "role", Error: ErrInvalidFilter.Error()})
	}
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return users, nil
	}
	return FilterUsers(users, filter), nil
}

// FilterUsers keeps the users matching filter, preserving order.
func FilterUsers(users []User, filter QueryFilter) []User {
	res := make([]User, 0, len(users))
	for _, usr := range users {
		if filter.SectionID != "" && usr.SectionID() != filter.SectionID {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), filter.Search) &&
			!strings.Contains(strings.ToLower(usr.Email), filter.Search) &&
			!strings.Contains(strings.ToLower(usr.RollNumber()), filter.Search) {
			continue
		}
		res = append(res, usr)
	}
	return res
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	users, err := svc.repo.QueryUsers(ctx)
	if err != nil {
		return User{}, err
	}
	for _, usr := range users {
		if strings.ToLower(usr.Email) == email {
			return usr, nil
		}
	}
	return User{}, core.NewNotFoundError("user", email)
}

func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !usr.IsStudent() {
		return errors.Wrap(ErrNotAStudent, id)
	}
	return svc.repo.DeleteStudent(ctx, id)
}

// Authenticate scans faculty and students for a case-insensitive email match and checks the password.
// Unknown emails and wrong passwords both yield core.ErrAuthFailed.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, core.ErrAuthFailed
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, core.ErrAuthFailed
	}
	return usr, nil
}

// SetPassword changes the password of a user after applying the password policy and clears IsFirstLogin.
func (svc *Service) SetPassword(ctx context.Context, id string, cp ChangePassword) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := cp.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, errors.Wrap(err, "usr.SetPassword()")
	}
	usr.IsFirstLogin = false
	usr.UpdatedAt = nowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResetPassword sets a new password for the user with the given email without touching IsFirstLogin.
func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := svc.validatePassword(pwd, usr.Name, usr.Email); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "usr.SetPassword()")
	}
	usr.UpdatedAt = nowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) validatePassword(pwd, name, email string) error {
	cp := ChangePassword{Password: pwd, PasswordConfirm: pwd}
	return cp.Validate(User{Name: name, Email: email}, svc.validate)
}

func (svc *Service) sendWelcomeEmail(usr User, defaultPwd string) {
	if svc.mailer == nil {
		return
	}

	body := fmt.Sprintf("Hello %s,\n\nYour %s account has been created. Sign in with %s.\n", usr.Name, svc.conf.AppName, usr.Email)
	if defaultPwd != "" {
		body += fmt.Sprintf("Your initial password is %q. You will be asked to change it when you first sign in.\n", defaultPwd)
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Welcome to " + svc.conf.AppName,
		BodyStr: body,
	}
	if err := msg.Render(); err != nil {
		svc.logger.Error(err.Error(), err, usr)
		return
	}
	svc.mailer.SendMessages(msg)
}
