package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/elimu/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleInstructor, RoleAdmin}

	rolePriorities = map[string]int{
		RoleAdmin:      30,
		RoleInstructor: 20,
		RoleStudent:    10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Phone        string    `json:"phone"`
	Avatar       string    `json:"avatar"`
	Bio          string    `json:"bio"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
	LastLogin    time.Time `json:"-"`         // UTC
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

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsInstructor is true for instructors and admins.
func (u User) IsInstructor() bool { return u.Role == RoleInstructor || u.IsAdmin() }

func (u User) IsStudent() bool { return u.Role == RoleStudent }

// Summary is the public view of a User embedded in other resources.
type Summary struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

// Profile is what other users may see of a User.
type Profile struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile returns the public profile; email is only kept when withEmail is set.
func (u User) Profile(withEmail bool) Profile {
	p := Profile{ID: u.ID, Name: u.Name, Role: u.Role, Avatar: u.Avatar, Bio: u.Bio, CreatedAt: u.CreatedAt}
	if withEmail {
		p.Email = u.Email
	}
	return p
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required,notblank,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	// Role is student or instructor; admins are only made by admins.
	Role string `json:"role" validate:"omitempty,oneof=student instructor"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
}

// UpdateProfile defines what a User may change on their own profile. Empty fields are left untouched.
type UpdateProfile struct {
	Name            string  `json:"name" validate:"omitempty,max=50"`
	Phone           *string `json:"phone" validate:"omitempty,max=20"`
	Avatar          *string `json:"avatar" validate:"omitempty,max=2048"`
	Bio             *string `json:"bio" validate:"omitempty,max=500"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm" validate:"required_with=Password,eqfield=Password"`

	// set by Clean, used by the password policy
	email string
}

func (up *UpdateProfile) Clean(origUsr User) {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = origUsr.Name
	}
	for _, s := range []*string{up.Phone, up.Avatar, up.Bio} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	up.email = origUsr.Email
}

type ResetUserPassword struct {
	Token           string `json:"token" validate:"required"`
	UID             string `json:"uid" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type SetRole struct {
	Role string `json:"role" validate:"required,role"`
}

type QueryFilter struct {
	Search string   `query:"search"`
	Roles  []string `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles)
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0
}
