package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNextID         = errors.New("get next id from generator")
	ErrRecordNotFound = errors.New("record not found")
)

type InputError struct {
	fields map[string][]string
	order  []string
}

func NewInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) FieldsCount() int {
	return len(ie.fields)
}

func (ie *InputError) AddError(field, msg string) {
	if _, ok := ie.fields[field]; !ok {
		ie.order = append(ie.order, field)
	}

	ie.fields[field] = append(ie.fields[field], msg)
}

// First returns the first message of the first field added.
func (ie *InputError) First() (string, string) {
	if len(ie.order) == 0 {
		return "", ""
	}

	field := ie.order[0]

	return field, ie.fields[field][0]
}

func (ie *InputError) Error() string {
	return fmt.Sprintf("%+v", ie.fields)
}
