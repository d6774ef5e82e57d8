package user

import (
	"unicode"

	"github.com/hitoshi/voteman/internal/model"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 8

// validatePassword はパスワードの複雑性を検証する。
// 8文字以上で、大文字・小文字・数字・記号をそれぞれ1文字以上含むこと。
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return model.NewWeakPasswordError()
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return model.NewWeakPasswordError()
	}

	return nil
}
