package models

import (
	"errors"
	"fmt"
)

var (
	errNullValue  = errors.New("value is null")
	errNotNumeric = errors.New("value is not numeric")
	errNotFinite  = errors.New("value is not a finite number")
)

// MissingFieldError reports a required soil field absent from the input.
type MissingFieldError struct {
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing field: %s", e.Field)
}

// InvalidValueError reports a soil field whose value is not a finite real number.
type InvalidValueError struct {
	Field Field
	Value any
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("Invalid value for %s", e.Field)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}
