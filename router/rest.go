package router

import (
	"chat-service/controller"
	"chat-service/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App) {
	api := app.Group("/v1", logger.New())

	// Chat
	chat := api.Group("/chat", middleware.JWT(), middleware.OTP())
	chat.Post("/", controller.ChatRoomCreate)
	chat.Get("/", controller.ChatRoomList)
	chat.Get("/:id", controller.ChatRoomGet)
	chat.Put("/:id", controller.ChatRoomUpdate)
	chat.Get("/:id/messages", controller.ChatMessages)
	chat.Get("/:id/pinned", controller.ChatPinnedList)
	chat.Get("/:id/participants", controller.ChatParticipantList)
	chat.Post("/:id/participants", controller.ChatParticipantAdd)
	chat.Delete("/:id/participants/:userId", controller.ChatParticipantRemove)
	chat.Put("/:id/admins/:userId", controller.ChatAdminPromote)
	chat.Delete("/:id/admins/:userId", controller.ChatAdminDemote)
	chat.Post("/:chatRoomId/pin/:messageId", controller.ChatMessagePin)
	chat.Delete("/:chatRoomId/pin/:messageId", controller.ChatMessageUnpin)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", controller.AuthSignup)
	auth.Post("/signin", controller.AuthSignin)
	auth.Post("/token/renew", controller.AuthTokenRenew)
	auth.Post("/2fa/secret", middleware.JWT(), middleware.OTP(), controller.AuthOtpSecret)
	auth.Post("/2fa/verify", middleware.JWT(), middleware.OTP(), controller.AuthOtpVerify)
	auth.Post("/2fa/validate", middleware.JWT(), controller.AuthOtpValidate)
	auth.Post("/2fa/disable", middleware.JWT(), middleware.OTP(), controller.AuthOtpDisable)

	// User
	user := api.Group("/user", middleware.JWT(), middleware.OTP())
	user.Get("/profile", controller.UserProfile)

	// Admin
	admin := api.Group("/admin", middleware.JWT(), middleware.OTP(), middleware.RBAC())
	admin.Get("/rooms", controller.AdminRoomList)
}
