package controller

import (
	"github.com/gofiber/fiber/v2"
)

func UserProfile(c *fiber.Ctx) error {
	userModel, err := currentUser(c)
	if err != nil {
		return errMsg(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return ok(c, fiber.StatusOK, "", fiber.Map{
		"id":        userModel.ID,
		"created":   userModel.CreatedAt.Unix(),
		"username":  userModel.Username,
		"email":     userModel.Email,
		"role":      userModel.Role,
		"is_active": userModel.IsActive,
		"otp":       userModel.Otp_enabled,
	})
}
