package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/foxyhub/internal/services"
)

// AuthHandler serves OTP login and token refresh.
type AuthHandler struct {
	otp      *services.OTPService
	sessions *services.SessionService
	echoCode bool
}

// NewAuthHandler constructs an AuthHandler. When echoCode is set the plain
// OTP is returned in the response, for development without an SMS channel.
func NewAuthHandler(otp *services.OTPService, sessions *services.SessionService, echoCode bool) *AuthHandler {
	return &AuthHandler{otp: otp, sessions: sessions, echoCode: echoCode}
}

type otpRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// RequestOTP issues a new code for the phone number, creating the user on
// first contact.
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	challenge, err := h.otp.RequestChallenge(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return err
	}

	data := fiber.Map{
		"message":     "OTP sent successfully",
		"is_new_user": challenge.IsNewUser,
		"expires_at":  challenge.ExpiresAt,
	}
	if h.echoCode {
		data["otp_code"] = challenge.Code
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

type otpVerifyRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

// VerifyOTP checks the code and returns the user with a token pair.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req otpVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.otp.ValidateChallenge(c.UserContext(), req.PhoneNumber, req.OTPCode)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":          session.User,
			"access_token":  session.Tokens.Access,
			"refresh_token": session.Tokens.Refresh,
		},
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshToken exchanges a refresh token for a new access token.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return fiber.NewError(fiber.StatusBadRequest, "refresh token is required")
	}

	access, err := h.sessions.Refresh(req.Refresh)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"access": access}})
}
