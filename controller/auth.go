package controller

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"

	"chat-service/config"
	"chat-service/database"
	"chat-service/model"
	"chat-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type AuthLoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AuthRenewTokenInput struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthOtpSecretInput struct {
	Password string `json:"password"`
}

type AuthOtpVerifyInput struct {
	Token string `json:"token"`
}

type AuthOtpValidateInput struct {
	Token string `json:"token"`
}

type AuthOtpDisableInput struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func errMsg(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func currentUser(c *fiber.Ctx) (*model.User, error) {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)

	userModel := new(model.User)
	if err := database.Postgres.First(&userModel, claims["id"]).Error; err != nil {
		return nil, err
	}
	return userModel, nil
}

func AuthSignup(c *fiber.Ctx) error {
	user := new(model.User)
	if err := c.BodyParser(user); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	// If existed email is found, return error
	if count := database.Postgres.
		Where(&model.User{Email: user.Email}).
		First(new(model.User)).
		RowsAffected; count > 0 {
		return errMsg(c, fiber.StatusBadRequest, "Email is already registered")
	}

	// If existed username is found, return error
	if count := database.Postgres.
		Where(&model.User{Username: user.Username}).
		First(new(model.User)).
		RowsAffected; count > 0 {
		return errMsg(c, fiber.StatusBadRequest, "Username is already registered")
	}

	// Generate hash from password.
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), 14)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}
	user.Password = string(hash)

	// Generate OTP secret
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      config.Config("OTP_ISSUER"),
		AccountName: user.Email,
		SecretSize:  15,
	})
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}
	user.Otp_secret = key.Secret()

	user.Role = "user"
	user.IsActive = true

	if err := database.Postgres.Create(&user).Error; err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	// Add casbin policy
	database.Casbin().AddGroupingPolicy(fmt.Sprint(user.ID), user.Role)

	return ok(c, fiber.StatusCreated, "", fiber.Map{
		"id": user.ID,
	})
}

func AuthSignin(c *fiber.Ctx) error {
	input := new(AuthLoginInput)
	if err := c.BodyParser(&input); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel, err := new(model.User), *new(error)

	_, errParse := mail.ParseAddress(input.Login)
	if errParse == nil {
		err = database.Postgres.Where(&model.User{Email: input.Login}).First(&userModel).Error
	} else {
		err = database.Postgres.Where(&model.User{Username: input.Login}).First(&userModel).Error
	}

	if err != nil {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid login or password")
	}

	if !userModel.IsActive {
		return errMsg(c, fiber.StatusForbidden, "Account is deactivated")
	}

	idStr := strconv.FormatUint(uint64(userModel.ID), 10)

	if err := bcrypt.CompareHashAndPassword([]byte(userModel.Password), []byte(input.Password)); err != nil {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid login or password")
	}

	// Generate JWT Access & Refresh tokens
	tokens, err := utils.GenerateTokens(idStr, userModel.Otp_enabled)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if err := database.Redis[0].Set(context.Background(), idStr, tokens.Refresh, 0).Err(); err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return ok(c, fiber.StatusOK, "", fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"2fa":     userModel.Otp_enabled,
	})
}

func AuthTokenRenew(c *fiber.Ctx) error {
	renew := &AuthRenewTokenInput{}
	if err := c.BodyParser(renew); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	claims, err := utils.CheckAndExtractTokenMetadata(renew.RefreshToken, "JWT_REFRESH_KEY")
	if err != nil {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid token")
	}

	userToken, err := database.Redis[0].Get(context.Background(), claims.Id).Result()
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if userToken != renew.RefreshToken {
		return errMsg(c, fiber.StatusUnauthorized, "Unauthorized, your refresh token was already used")
	}

	// Generate JWT Access & Refresh tokens
	tokens, err := utils.GenerateTokens(claims.Id, claims.Otp)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	// Save refresh token to Redis
	if err := database.Redis[0].Set(context.Background(), claims.Id, tokens.Refresh, 0).Err(); err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return ok(c, fiber.StatusOK, "", fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"2fa":     claims.Otp,
	})
}

func AuthOtpSecret(c *fiber.Ctx) error {
	secret := &AuthOtpSecretInput{}
	if err := c.BodyParser(secret); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel, err := currentUser(c)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(userModel.Password), []byte(secret.Password)); err != nil {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid password")
	}

	return ok(c, fiber.StatusOK, "", fiber.Map{
		"secret": userModel.Otp_secret,
		"url": fmt.Sprintf("otpauth://totp/%s:%s?algorithm=SHA1&digits=6&issuer=%s&period=30&secret=%s",
			config.Config("OTP_ISSUER"),
			userModel.Email,
			config.Config("OTP_ISSUER"),
			userModel.Otp_secret,
		),
	})
}

func AuthOtpVerify(c *fiber.Ctx) error {
	verify := &AuthOtpVerifyInput{}
	if err := c.BodyParser(verify); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel, err := currentUser(c)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if userModel.Otp_enabled {
		return errMsg(c, fiber.StatusUnauthorized, "Verification has already been performed earlier")
	}

	if !totp.Validate(verify.Token, userModel.Otp_secret) {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid token")
	}

	userModel.Otp_enabled = true
	database.Postgres.Save(&userModel)

	return ok(c, fiber.StatusOK, "2FA enabled", nil)
}

func AuthOtpValidate(c *fiber.Ctx) error {
	validate := &AuthOtpValidateInput{}
	if err := c.BodyParser(validate); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel, err := currentUser(c)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if !userModel.Otp_enabled {
		return errMsg(c, fiber.StatusBadRequest, "2FA has been disabled")
	}

	if !totp.Validate(validate.Token, userModel.Otp_secret) {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid token")
	}

	idStr := strconv.FormatUint(uint64(userModel.ID), 10)

	// Generate JWT Access & Refresh tokens
	tokens, err := utils.GenerateTokens(idStr, false)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	// Save refresh token to Redis
	if err := database.Redis[0].Set(context.Background(), idStr, tokens.Refresh, 0).Err(); err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return ok(c, fiber.StatusOK, "", fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

func AuthOtpDisable(c *fiber.Ctx) error {
	disable := &AuthOtpDisableInput{}
	if err := c.BodyParser(disable); err != nil {
		return errMsg(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel, err := currentUser(c)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if !userModel.Otp_enabled {
		return errMsg(c, fiber.StatusBadRequest, "2FA not enabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(userModel.Password), []byte(disable.Password)); err != nil {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid password")
	}

	if !totp.Validate(disable.Token, userModel.Otp_secret) {
		return errMsg(c, fiber.StatusUnauthorized, "Invalid token")
	}

	userModel.Otp_enabled = false
	database.Postgres.Save(&userModel)

	return ok(c, fiber.StatusOK, "2FA disabled", nil)
}
