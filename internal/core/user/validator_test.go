package user

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCreate_Defaults(t *testing.T) {
	t.Parallel()

	u, err := ValidateCreate(CreateUserInput{Username: "abc", Email: "abc@example.com"})
	if err != nil {
		t.Fatalf("ValidateCreate returned error: %v", err)
	}
	if u.Role != RoleUser || !u.Active {
		t.Fatalf("unexpected defaults: role=%s active=%v", u.Role, u.Active)
	}
	if u.ID != "" || !u.CreatedAt.IsZero() {
		t.Fatalf("identity and timestamps must be left to the service: %+v", u)
	}
}

func TestValidateCreate_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      CreateUserInput
		wantErr bool
	}{
		{name: "min username", in: CreateUserInput{Username: "abc", Email: "a@example.com"}},
		{name: "max username", in: CreateUserInput{Username: strings.Repeat("z", 50), Email: "a@example.com"}},
		{name: "underscore only", in: CreateUserInput{Username: "___", Email: "a@example.com"}},
		{name: "max names", in: CreateUserInput{Username: "abc", Email: "a@example.com", FirstName: strPtr(strings.Repeat("n", 100)), LastName: strPtr(strings.Repeat("n", 100))}},
		{name: "empty names", in: CreateUserInput{Username: "abc", Email: "a@example.com", FirstName: strPtr(""), LastName: strPtr("")}},
		{name: "guest role", in: CreateUserInput{Username: "abc", Email: "a@example.com", Role: RoleGuest}},
		{name: "too short", in: CreateUserInput{Username: "ab", Email: "a@example.com"}, wantErr: true},
		{name: "too long", in: CreateUserInput{Username: strings.Repeat("z", 51), Email: "a@example.com"}, wantErr: true},
		{name: "space in username", in: CreateUserInput{Username: "a b", Email: "a@example.com"}, wantErr: true},
		{name: "unicode username", in: CreateUserInput{Username: "ユーザー", Email: "a@example.com"}, wantErr: true},
		{name: "email too long", in: CreateUserInput{Username: "abc", Email: strings.Repeat("e", 250) + "@x.io"}, wantErr: true},
		{name: "missing at", in: CreateUserInput{Username: "abc", Email: "example.com"}, wantErr: true},
		{name: "role case sensitive", in: CreateUserInput{Username: "abc", Email: "a@example.com", Role: Role("Admin")}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidateCreate(tt.in)
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCreate_FieldNamesMatchPayloadKeys(t *testing.T) {
	t.Parallel()

	_, err := ValidateCreate(CreateUserInput{Username: "abc", Email: "a@example.com", LastName: strPtr(strings.Repeat("n", 101))})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "last_name" {
		t.Fatalf("unexpected fields: %+v", verr.Fields)
	}
	if verr.Fields[0].Message == "" {
		t.Fatalf("expected a message for last_name")
	}
}

func TestValidateCreateAndUpdate_ReportSameViolations(t *testing.T) {
	t.Parallel()

	longName := strings.Repeat("n", 101)
	tests := []struct {
		field  string
		create CreateUserInput
		update UpdateUserInput
	}{
		{
			field:  "email",
			create: CreateUserInput{Username: "abc", Email: "not-an-email"},
			update: UpdateUserInput{Email: Some("not-an-email")},
		},
		{
			field:  "first_name",
			create: CreateUserInput{Username: "abc", Email: "a@example.com", FirstName: &longName},
			update: UpdateUserInput{FirstName: Some(longName)},
		},
		{
			field:  "role",
			create: CreateUserInput{Username: "abc", Email: "a@example.com", Role: Role("root")},
			update: UpdateUserInput{Role: Some(Role("root"))},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.field, func(t *testing.T) {
			t.Parallel()

			_, createErr := ValidateCreate(tt.create)
			updateErr := ValidateUpdate(tt.update)

			var createV, updateV *ValidationError
			if !errors.As(createErr, &createV) || !errors.As(updateErr, &updateV) {
				t.Fatalf("expected validation errors, got create=%v update=%v", createErr, updateErr)
			}
			if len(createV.Fields) != 1 || len(updateV.Fields) != 1 {
				t.Fatalf("expected one violation each, got create=%+v update=%+v", createV.Fields, updateV.Fields)
			}
			if createV.Fields[0] != updateV.Fields[0] || createV.Fields[0].Field != tt.field {
				t.Fatalf("create and update disagree: %+v vs %+v", createV.Fields[0], updateV.Fields[0])
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         UpdateUserInput
		wantFields []string
	}{
		{name: "empty update", in: UpdateUserInput{}},
		{name: "clear names", in: UpdateUserInput{FirstName: Null[string](), LastName: Null[string]()}},
		{name: "valid email", in: UpdateUserInput{Email: Some("new@example.com")}},
		{name: "long first name", in: UpdateUserInput{FirstName: Some(strings.Repeat("n", 101))}, wantFields: []string{"first_name"}},
		{name: "invalid email and role", in: UpdateUserInput{Email: Some("bad"), Role: Some(Role("root"))}, wantFields: []string{"email", "role"}},
		{name: "null active", in: UpdateUserInput{Active: Null[bool]()}, wantFields: []string{"active"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateUpdate(tt.in)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("expected %d fields, got %+v", len(tt.wantFields), verr.Fields)
			}
			for i, field := range tt.wantFields {
				if verr.Fields[i].Field != field {
					t.Errorf("field[%d]: expected %s, got %s", i, field, verr.Fields[i].Field)
				}
			}
		})
	}
}

func TestValidateListFilter(t *testing.T) {
	t.Parallel()

	if err := ValidateListFilter(MinListLimit, 0); err != nil {
		t.Fatalf("min limit rejected: %v", err)
	}
	if err := ValidateListFilter(MaxListLimit, 1000); err != nil {
		t.Fatalf("max limit rejected: %v", err)
	}

	err := ValidateListFilter(0, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected limit and offset violations, got %v", err)
	}
}

func TestListUsersFilter_Clamp(t *testing.T) {
	t.Parallel()

	got := ListUsersFilter{Limit: 1000, Offset: -5}.Clamp()
	if got.Limit != MaxListLimit || got.Offset != 0 {
		t.Fatalf("unexpected clamp result: %+v", got)
	}

	got = ListUsersFilter{Limit: 0}.Clamp()
	if got.Limit != MinListLimit {
		t.Fatalf("expected min limit, got %d", got.Limit)
	}
}
