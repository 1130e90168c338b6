// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package auth

import (
	"encoding/json"

	"github.com/samber/oops"
)

// Profile holds the role-specific attributes of an account. The auth core
// only carries them between registration and the returned DTO.
type Profile interface {
	Role() Role
}

// AdminProfile are the attributes of an administrator.
type AdminProfile struct {
	AccessLevel int    `json:"access_level" jsonschema:"minimum=0,maximum=10"`
	Title       string `json:"title" jsonschema:"required,minLength=1,maxLength=100"`
	Description string `json:"description,omitempty" jsonschema:"maxLength=500"`
}

// Role implements Profile.
func (AdminProfile) Role() Role { return RoleAdmin }

// MentorProfile are the attributes of a mentor.
type MentorProfile struct {
	Expertise       string   `json:"expertise" jsonschema:"required,minLength=1,maxLength=100"`
	Bio             string   `json:"bio" jsonschema:"required,minLength=1,maxLength=500"`
	ExperienceYears int      `json:"experience_years" jsonschema:"minimum=0,maximum=80"`
	Certifications  []string `json:"certifications,omitempty"`
	PortfolioURL    string   `json:"portfolio_url,omitempty" jsonschema:"maxLength=255"`
	Available       bool     `json:"available"`
	City            string   `json:"city,omitempty" jsonschema:"maxLength=100"`
	Country         string   `json:"country,omitempty" jsonschema:"maxLength=100"`
	HourlyRate      float64  `json:"hourly_rate,omitempty" jsonschema:"minimum=0"`
	Languages       []string `json:"languages,omitempty"`
}

// Role implements Profile.
func (MentorProfile) Role() Role { return RoleMentor }

// StudentProfile are the attributes of a student.
type StudentProfile struct {
	FieldOfStudy           string   `json:"field_of_study" jsonschema:"required,minLength=1,maxLength=100"`
	EducationLevel         string   `json:"education_level,omitempty" jsonschema:"maxLength=50"`
	LearningGoals          string   `json:"learning_goals,omitempty" jsonschema:"maxLength=500"`
	About                  string   `json:"about,omitempty" jsonschema:"maxLength=1000"`
	Skills                 []string `json:"skills,omitempty"`
	AvailableForMentorship bool     `json:"available_for_mentorship"`
}

// Role implements Profile.
func (StudentProfile) Role() Role { return RoleStudent }

// UnmarshalProfile decodes data into the concrete profile type of role.
func UnmarshalProfile(role Role, data []byte) (Profile, error) {
	var (
		p   Profile
		err error
	)
	switch role {
	case RoleAdmin:
		var ap AdminProfile
		err = json.Unmarshal(data, &ap)
		p = ap
	case RoleMentor:
		var mp MentorProfile
		err = json.Unmarshal(data, &mp)
		p = mp
	case RoleStudent:
		var sp StudentProfile
		err = json.Unmarshal(data, &sp)
		p = sp
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ROLE").With("role", role.String()).Errorf("no profile type for role %q", role)
	}
	if err != nil {
		return nil, oops.Code("AUTH_PROFILE_DECODE_FAILED").With("role", role.String()).Wrap(err)
	}
	return p, nil
}
