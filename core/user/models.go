package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/nbkrcse/labtrack/core"
)

type Role string

// Roles
const (
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

var Roles = []Role{RoleFaculty, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleFaculty, RoleStudent:
		return true
	default:
		return false
	}
}

// StudentInfo holds the fields only students carry.
type StudentInfo struct {
	RollNumber string `json:"roll_number"`
	SectionID  string `json:"section_id"`
}

// User is either a faculty member or a student, as told by Role.
// Student is set if and only if Role is RoleStudent.
type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Role         Role         `json:"role"`
	IsFirstLogin bool         `json:"is_first_login"`
	Student      *StudentInfo `json:"student,omitempty"`
	PasswordHash []byte       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"` // UTC
	UpdatedAt    time.Time    `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsFaculty() bool { return u.Role == RoleFaculty }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// SectionID returns the student's section, "" for faculty.
func (u *User) SectionID() string {
	if u.Student == nil {
		return ""
	}
	return u.Student.SectionID
}

func (u *User) RollNumber() string {
	if u.Student == nil {
		return ""
	}
	return u.Student.RollNumber
}

// IDPrefix returns the prefix of identifiers of users of this role.
func (r Role) IDPrefix() string {
	if r == RoleFaculty {
		return "f"
	}
	return "s"
}

// Collection returns the name of the collection holding users of this role.
func (r Role) Collection() (string, error) {
	switch r {
	case RoleFaculty:
		return core.CollectionFaculty, nil
	case RoleStudent:
		return core.CollectionStudents, nil
	default:
		return "", core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
}

// NewFaculty contains information needed to sign up a faculty member.
type NewFaculty struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nf *NewFaculty) Validate(validate *validator.Validate, svc *Service) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Email = core.CleanString(nf.Email, true /* lower */)

	if err := validate.Struct(nf); err != nil {
		return err
	}
	return svc.checkUniqueness(nf.Email)
}

// NewStudent contains information needed to enroll a student.
// Students get the default password and must change it on first login.
type NewStudent struct {
	Name       string `json:"name" validate:"required,notblank"`
	RollNumber string `json:"roll_number" validate:"required,alphanum_"`
	Email      string `json:"email" validate:"required,email"`
	SectionID  string `json:"section_id" validate:"required,notblank"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNumber = core.CleanString(ns.RollNumber)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.SectionID = core.CleanString(ns.SectionID)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(ns.Email)
}

// UpdateStudent defines what information may be provided to modify an existing student.
// Empty fields are left unchanged.
type UpdateStudent struct {
	Name       string `json:"name"`
	RollNumber string `json:"roll_number" validate:"omitempty,alphanum_"`
	Email      string `json:"email" validate:"omitempty,email"`
	SectionID  string `json:"section_id"`
}

func (us *UpdateStudent) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	us.Name = core.CleanString(us.Name)
	us.RollNumber = core.CleanString(us.RollNumber)
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.SectionID = core.CleanString(us.SectionID)

	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.Email != "" && us.Email != origUsr.Email {
		return svc.checkUniqueness(us.Email, origUsr)
	}
	return nil
}

// ChangePassword is the payload of a password change by the user themselves.
type ChangePassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// used by the password policy
	name, email string
}

func (cp *ChangePassword) Validate(usr User, validate *validator.Validate) error {
	cp.name = usr.Name
	cp.email = usr.Email
	return validate.Struct(cp)
}

type QueryFilter struct {
	Search    string `query:"search"`
	SectionID string `query:"section"`
	Role      Role   `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.SectionID == "" && qf.Role == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.SectionID = core.CleanString(qf.SectionID)
}
