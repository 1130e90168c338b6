// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package schema

import (
	"encoding/json"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlik/mentorlik/pkg/errutil"
)

type signup struct {
	Email    string   `json:"email" jsonschema:"required,format=email,maxLength=100"`
	Password string   `json:"password" jsonschema:"required,minLength=8"`
	Tags     []string `json:"tags,omitempty"`
}

func TestGenerate(t *testing.T) {
	raw, err := Generate(&signup{}, "signup")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "signup", doc["title"])
	assert.ElementsMatch(t, []any{"email", "password"}, doc["required"])
	assert.Equal(t, false, doc["additionalProperties"])
}

func TestValidateJSON(t *testing.T) {
	v, err := New(&signup{}, "signup")
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@x.com","password":"12345678"}`, false},
		{"optional field", `{"email":"a@x.com","password":"12345678","tags":["go"]}`, false},
		{"short password", `{"email":"a@x.com","password":"1234567"}`, true},
		{"missing password", `{"email":"a@x.com"}`, true},
		{"bad email", `{"email":"not-an-email","password":"12345678"}`, true},
		{"unknown field", `{"email":"a@x.com","password":"12345678","admin":true}`, true},
		{"wrong type", `{"email":"a@x.com","password":12345678}`, true},
		{"not json", `{"email":`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tt.body))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "REQUEST_INVALID")
		})
	}
}

func TestValidateJSON_Violations(t *testing.T) {
	v := MustNew(&signup{}, "signup")

	err := v.ValidateJSON([]byte(`{"email":"a@x.com","password":"short"}`))
	require.Error(t, err)

	violations := ViolationsOf(err)
	require.Len(t, violations, 1)
	assert.Equal(t, "/password", violations[0].Field)
	assert.NotEmpty(t, violations[0].Message)
	assert.Contains(t, err.Error(), "/password")

	assert.Nil(t, ViolationsOf(oops.Errorf("plain")))
}

func TestValidateYAML(t *testing.T) {
	v := MustNew(&signup{}, "signup")

	require.NoError(t, v.ValidateYAML([]byte("email: a@x.com\npassword: \"12345678\"\ntags: [go, sql]\n")))
	errutil.AssertErrorCode(t, v.ValidateYAML([]byte("email: a@x.com\n")), "REQUEST_INVALID")
	errutil.AssertErrorCode(t, v.ValidateYAML([]byte("email: [unclosed\n")), "REQUEST_INVALID")
	errutil.AssertErrorCode(t, v.ValidateYAML(nil), "REQUEST_INVALID")
}

func TestToJSONTypes(t *testing.T) {
	in := map[string]any{
		"n":    1,
		"list": []any{"a", map[string]any{"b": true}},
	}
	out := toJSONTypes(in)
	assert.Equal(t, in, out)
}
