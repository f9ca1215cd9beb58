package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/itchan-dev/bbs/shared/errors"
)

var (
	prefixRegex    = regexp.MustCompile(`^[A-Za-z]{0,3}$`)
	boardNameRegex = regexp.MustCompile(`(?i)^([A-Z]|[0-9]|\.|-|')+( ([A-Z]|[0-9]|\.|-|')+)*$`)
)

const (
	categoryNameMaxLen = 40
	boardNameMaxLen    = 40
)

// Validator checks user supplied names and post fields. The zero value is not
// usable; build it with New.
type Validator struct {
	subjectMaxLen int
	bodyMaxLen    int
}

func New(subjectMaxLen, bodyMaxLen int) *Validator {
	return &Validator{subjectMaxLen: subjectMaxLen, bodyMaxLen: bodyMaxLen}
}

func (v *Validator) CategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.KindMalformedName, "category", name, "Category name can't be empty")
	}
	if name != strings.TrimSpace(name) {
		return errors.New(errors.KindMalformedName, "category", name, "Category name can't start or end with spaces")
	}
	if utf8.RuneCountInString(name) > categoryNameMaxLen {
		return errors.New(errors.KindMalformedName, "category", name, "Category name is too long")
	}
	for _, r := range name {
		if r == '|' || unicode.IsControl(r) {
			return errors.New(errors.KindMalformedName, "category", name, "Category name contains forbidden characters")
		}
	}
	return nil
}

func (v *Validator) CategoryPrefix(prefix string) error {
	if !prefixRegex.MatchString(prefix) {
		return errors.New(errors.KindInvalidPrefix, "category", prefix, "Prefix must be at most three letters")
	}
	return nil
}

func (v *Validator) BoardName(name string) error {
	if utf8.RuneCountInString(name) > boardNameMaxLen {
		return errors.New(errors.KindInvalidName, "board", name, "Board name is too long")
	}
	if !boardNameRegex.MatchString(name) {
		return errors.New(errors.KindInvalidName, "board", name,
			"Board names may contain letters, digits, '.', '-' and single spaces")
	}
	return nil
}

func (v *Validator) PostSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return errors.InvalidArgument("post", subject, "Subject can't be empty")
	}
	if strings.ContainsAny(subject, "\r\n") {
		return errors.InvalidArgument("post", subject, "Subject must be a single line")
	}
	if v.subjectMaxLen > 0 && utf8.RuneCountInString(subject) > v.subjectMaxLen {
		return errors.InvalidArgument("post", subject, "Subject is too long")
	}
	return nil
}

func (v *Validator) PostBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.InvalidArgument("post", "", "Text is too short")
	}
	if v.bodyMaxLen > 0 && utf8.RuneCountInString(body) > v.bodyMaxLen {
		return errors.InvalidArgument("post", "", "Text is too long")
	}
	return nil
}
