package model

import (
	"errors"
	"fmt"
)

// ErrValidation 表示写入前的字段校验失败，错误信息可直接返回给客户端。
var ErrValidation = errors.New("validation failed")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// checkEnum accepts empty values; required checks are done by the caller.
func checkEnum(field, value string, allowed []string) error {
	if value == "" || oneOf(value, allowed) {
		return nil
	}
	return invalidf("%s must be one of %v", field, allowed)
}
