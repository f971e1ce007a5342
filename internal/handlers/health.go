package handlers

import "github.com/gofiber/fiber/v2"

// Health reports that the API is up.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "message": "API is running"})
}
