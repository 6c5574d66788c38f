package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalAddress is the fiber.Ctx locals key holding the caller's wallet address.
const LocalAddress = "address"

// JWTMiddleware validates bearer tokens and stores the wallet address in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := parseBearer(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.Address == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		c.Locals(LocalAddress, claims.Address)
		return c.Next()
	}
}

// Address returns the authenticated wallet address, or "" when the request
// did not pass JWTMiddleware.
func Address(c *fiber.Ctx) string {
	address, _ := c.Locals(LocalAddress).(string)
	return address
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims
