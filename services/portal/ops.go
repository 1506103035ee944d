package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateUser provisions an account outside the HTTP flow, for operator
// tooling. The email must be unused.
func CreateUser(ctx context.Context, orm *gorm.DB, email, fullName, role, password string, verified bool) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, errors.New("email is required")
	}
	if fullName == "" {
		return User{}, errors.New("full name is required")
	}
	if !validRole(role) {
		return User{}, fmt.Errorf("unknown role %q", role)
	}
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	model := userModel{
		Email:         email,
		PasswordHash:  string(hash),
		FullName:      fullName,
		Role:          role,
		EmailVerified: verified,
	}
	if err := orm.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("an account with email %s already exists", email)
		}
		return User{}, err
	}
	return model.toAPI(), nil
}

// VerifyUserEmail marks the account's email as verified.
func VerifyUserEmail(ctx context.Context, orm *gorm.DB, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var model userModel
	err := orm.WithContext(ctx).First(&model, "email = ?", email).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return User{}, fmt.Errorf("no account with email %s", email)
	case err != nil:
		return User{}, err
	}

	if !model.EmailVerified {
		if err := orm.WithContext(ctx).Model(&model).Update("email_verified", true).Error; err != nil {
			return User{}, err
		}
		model.EmailVerified = true
	}
	return model.toAPI(), nil
}
