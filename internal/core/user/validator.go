package user

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("user: register username validation: %v", err))
	}
	return v
}

// フィールドごとの検証ルールです。作成時と更新時で共通に使います。
const (
	usernameRules = "required,min=3,max=50,username"
	emailRules    = "required,email,max=254"
	nameRules     = "max=100"
	roleRules     = "oneof=admin user guest"
)

// ValidateCreate は作成ペイロードを検証し、既定値を補完したユーザーを返します。
// ID とタイムスタンプは設定しません。ストアには一切アクセスしません。
func ValidateCreate(in CreateUserInput) (*User, error) {
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	verr := &ValidationError{}
	checkVar(verr, "username", in.Username, usernameRules)
	checkVar(verr, "email", in.Email, emailRules)
	if in.FirstName != nil {
		checkVar(verr, "first_name", *in.FirstName, nameRules)
	}
	if in.LastName != nil {
		checkVar(verr, "last_name", *in.LastName, nameRules)
	}
	checkVar(verr, "role", string(role), roleRules)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	return &User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: cloneString(in.FirstName),
		LastName:  cloneString(in.LastName),
		Role:      role,
		Active:    active,
	}, nil
}

// ValidateUpdate は部分更新ペイロードのうち指定されたフィールドのみを検証します。
// first_name / last_name の null はクリアとして許容し、email / role / active の null は拒否します。
func ValidateUpdate(in UpdateUserInput) error {
	verr := &ValidationError{}

	if in.Email.IsNull() {
		verr.add("email", "must not be null")
	} else if v, ok := in.Email.Get(); ok {
		checkVar(verr, "email", v, emailRules)
	}

	if v, ok := in.FirstName.Get(); ok {
		checkVar(verr, "first_name", v, nameRules)
	}

	if v, ok := in.LastName.Get(); ok {
		checkVar(verr, "last_name", v, nameRules)
	}

	if in.Role.IsNull() {
		verr.add("role", "must not be null")
	} else if v, ok := in.Role.Get(); ok {
		checkVar(verr, "role", string(v), roleRules)
	}

	if in.Active.IsNull() {
		verr.add("active", "must not be null")
	}

	return verr.orNil()
}

// ValidateListFilter は一覧取得の limit / offset を検証します。
func ValidateListFilter(limit, offset int) error {
	verr := &ValidationError{}
	if limit < MinListLimit || limit > MaxListLimit {
		verr.add("limit", fmt.Sprintf("must be between %d and %d", MinListLimit, MaxListLimit))
	}
	if offset < 0 {
		verr.add("offset", "must be greater than or equal to 0")
	}
	return verr.orNil()
}

func checkVar(verr *ValidationError, field string, value any, rules string) {
	err := validate.Var(value, rules)
	if err == nil {
		return
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			verr.add(field, validationMessage(fe))
		}
		return
	}
	verr.add(field, "is invalid")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "username":
		return "must contain only letters, digits and underscores"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation (%s)", fe.Tag())
	}
}
