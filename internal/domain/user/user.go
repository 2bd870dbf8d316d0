package user

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleMentee Role = "mentee"
	RoleMentor Role = "mentor"

	DefaultRole = RoleMentee
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailTaken  = errors.New("email already registered")
	ErrInvalidRole = errors.New("role must be mentee or mentor")
)

// ParseRole maps an optional role value onto the enumerated roles. Empty means DefaultRole.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case "":
		return DefaultRole, nil
	case RoleMentee, RoleMentor:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidRole, raw)
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type User struct {
	ID                    string                 `json:"id"`
	Name                  string                 `json:"name"`
	Email                 string                 `json:"email"`
	PasswordHash          string                 `json:"-"` // never expose hash in JSON
	Role                  Role                   `json:"role"`
	Profile               Profile                `json:"profile"`
	CareerRecommendations []CareerRecommendation `json:"careerRecommendations"`
	MentorMatches         []MentorMatch          `json:"mentorMatches"`
	CreatedAt             time.Time              `json:"createdAt"`
}

// Profile fields vary by role; mentors fill expertise and availability.
type Profile struct {
	Education        string   `json:"education,omitempty" binding:"max=500"`
	Experience       string   `json:"experience,omitempty" binding:"max=2000"`
	CurrentRole      string   `json:"currentRole,omitempty" binding:"max=200"`
	Skills           []string `json:"skills,omitempty" binding:"max=50,dive,max=100"`
	Interests        []string `json:"interests,omitempty" binding:"max=50,dive,max=100"`
	CareerGoals      string   `json:"careerGoals,omitempty" binding:"max=2000"`
	CareerBreakYears *float64 `json:"careerBreakYears,omitempty" binding:"omitempty,gte=0,lte=60"`
	Bio              string   `json:"bio,omitempty" binding:"max=2000"`
	Expertise        []string `json:"expertise,omitempty" binding:"max=50,dive,max=100"`
	Availability     string   `json:"availability,omitempty" binding:"max=200"`
}

type CareerRecommendation struct {
	CareerPath string    `json:"careerPath"`
	Confidence float64   `json:"confidence"`
	Skills     []string  `json:"skills"`
	Timestamp  time.Time `json:"timestamp"`
}

type MentorMatch struct {
	MentorID           string    `json:"mentorId"`
	CompatibilityScore float64   `json:"compatibilityScore"`
	Timestamp          time.Time `json:"timestamp"`
}

type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
}

// Summary is the redacted view returned by register and login.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Redacted returns a copy without the password hash.
func (u User) Redacted() User {
	u.PasswordHash = ""
	return u
}

// Normalize trims free text and drops blank list entries.
func (p Profile) Normalize() Profile {
	p.Education = strings.TrimSpace(p.Education)
	p.Experience = strings.TrimSpace(p.Experience)
	p.CurrentRole = strings.TrimSpace(p.CurrentRole)
	p.CareerGoals = strings.TrimSpace(p.CareerGoals)
	p.Bio = strings.TrimSpace(p.Bio)
	p.Availability = strings.TrimSpace(p.Availability)
	p.Skills = compact(p.Skills)
	p.Interests = compact(p.Interests)
	p.Expertise = compact(p.Expertise)
	return p
}

func compact(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
