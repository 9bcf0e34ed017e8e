package user

import (
	"errors"
	"strings"
)

var (
	// ErrUserNotFound はユーザーが存在しない場合に返却されます。
	ErrUserNotFound = errors.New("user not found")
	// ErrValidation は入力値の検証に失敗した場合の分類です。*ValidationError が該当します。
	ErrValidation = errors.New("validation failed")
	// ErrConflict は一意制約違反の分類です。*ConflictError が該当します。
	ErrConflict = errors.New("conflict")
	// ErrDuplicateUser はストアが一意制約違反を検知したものの、対象カラムを特定できない場合に返却されます。
	ErrDuplicateUser = errors.New("duplicate user")
)

// ConflictReason は一意制約違反の理由です。
type ConflictReason string

const (
	ReasonUsernameExists ConflictReason = "username_exists"
	ReasonEmailExists    ConflictReason = "email_exists"
)

// ConflictError は username / email の重複を表します。
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	return string(e.Reason)
}

// Is により errors.Is(err, ErrConflict) で分類を判定できます。
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

var (
	// ErrUsernameAlreadyExists はユーザー名重複時に返却されます。
	ErrUsernameAlreadyExists error = &ConflictError{Reason: ReasonUsernameExists}
	// ErrEmailAlreadyExists はメールアドレス重複時に返却されます。
	ErrEmailAlreadyExists error = &ConflictError{Reason: ReasonEmailExists}
)

// FieldError は単一フィールドの検証エラーです。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError は検証に失敗したすべてのフィールドを保持します。
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
