// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package activation

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common_passwords.txt
var commonPasswordsFS embed.FS

var commonPasswords = loadCommonPasswords()

func loadCommonPasswords() map[string]struct{} {
	passwords := make(map[string]struct{})
	file, err := commonPasswordsFS.Open("common_passwords.txt")
	if err != nil {
		return passwords
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		password := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if password != "" && !strings.HasPrefix(password, "#") {
			passwords[password] = struct{}{}
		}
	}
	return passwords
}

// PasswordPolicy decides which account passwords are accepted on activation.
type PasswordPolicy struct {
	MinLength       int
	CheckCommon     bool
	CheckSimilarity bool
}

// DefaultPasswordPolicy returns the policy used for new accounts.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:       12,
		CheckCommon:     true,
		CheckSimilarity: true,
	}
}

// PasswordProblem is one reason a password was refused.
type PasswordProblem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PasswordError lists every problem found with a password.
type PasswordError struct {
	Problems []PasswordProblem
}

func (e *PasswordError) Error() string {
	if len(e.Problems) == 0 {
		return ErrWeakPassword.Error()
	}
	return e.Problems[0].Message
}

// Is makes errors.Is(err, ErrWeakPassword) hold.
func (e *PasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// Check returns a *PasswordError if password violates the policy.
// attributes are personal details (email, names) the password must not resemble.
func (p PasswordPolicy) Check(password string, attributes ...string) error {
	var problems []PasswordProblem

	if utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, PasswordProblem{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", p.MinLength),
		})
	}

	if isEntirelyNumeric(password) {
		problems = append(problems, PasswordProblem{
			Code:    "entirely_numeric",
			Message: "Password cannot be entirely numeric.",
		})
	}

	if p.CheckCommon && isCommonPassword(password) {
		problems = append(problems, PasswordProblem{
			Code:    "common_password",
			Message: "This password is too common.",
		})
	}

	if p.CheckSimilarity && isSimilarToAttributes(password, attributes) {
		problems = append(problems, PasswordProblem{
			Code:    "too_similar",
			Message: "Password is too similar to your personal information.",
		})
	}

	if len(problems) > 0 {
		return &PasswordError{Problems: problems}
	}
	return nil
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return password != ""
}

func isCommonPassword(password string) bool {
	_, exists := commonPasswords[strings.ToLower(password)]
	return exists
}

func isSimilarToAttributes(password string, attributes []string) bool {
	pw := strings.ToLower(password)
	if pw == "" {
		return false
	}

	for _, attr := range attributes {
		// Short attributes like "Li" would match nearly anything.
		if utf8.RuneCountInString(attr) < 3 {
			continue
		}
		a := strings.ToLower(attr)

		if strings.Contains(pw, a) || strings.Contains(a, pw) {
			return true
		}
		if similarity(pw, a) > 0.7 {
			return true
		}
	}
	return false
}

// similarity is the longest common subsequence relative to the longer input.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}

	return float64(prev[len(rb)]) / float64(max(len(ra), len(rb)))
}
