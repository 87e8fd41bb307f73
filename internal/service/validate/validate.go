package validate

import (
	"errors"
)

var (
	errInvalidCharacters = errors.New("number contains invalid characters")
	errLuhnMismatch      = errors.New("number is not valid according to Luhn algorithm")
)

// Luhn validates the number including its trailing check digit
func Luhn(number string) error {
	sum, err := luhnSum(number, false)
	if err != nil {
		return err
	}

	if sum%10 != 0 {
		return errLuhnMismatch
	}
	return nil
}

// CheckDigit returns the digit that makes payload+digit pass Luhn
func CheckDigit(payload string) (byte, error) {
	sum, err := luhnSum(payload, true)
	if err != nil {
		return 0, err
	}

	return byte('0' + (10-sum%10)%10), nil
}

// luhnSum walks digits right to left doubling every second one.
// When the check digit is not appended yet the doubling starts from the rightmost digit.
func luhnSum(number string, withoutCheck bool) (int, error) {
	if number == "" {
		return 0, errInvalidCharacters
	}

	sum := 0
	double := withoutCheck
	for i := len(number) - 1; i >= 0; i-- {
		n := number[i]
		if n < '0' || n > '9' {
			return 0, errInvalidCharacters
		}

		digit := int(n - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum, nil
}
