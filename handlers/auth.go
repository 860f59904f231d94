package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/irisdrone/pipewatch/database"
	"golang.org/x/crypto/bcrypt"
)

const usernameKey = "username"

// LoginRequest accepts form or JSON credentials.
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// TokenResponse is the OAuth2-style login response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// Login handles user authentication
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.Users.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			h.log.Error("❌ Failed to fetch user", "error", err)
		}
		unauthorized(c, "Incorrect username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		unauthorized(c, "Incorrect username or password")
		return
	}

	tokenString, err := h.issueToken(user.Username, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: tokenString,
		TokenType:   "bearer",
	})
}

func (h *Handler) issueToken(username string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(h.AccessTokenExpiry).Unix(),
	})
	return token.SignedString(h.JWTSecret)
}

// Verify returns the user behind the token.
func (h *Handler) Verify(c *gin.Context) {
	user, err := h.Users.FindByUsername(c.Request.Context(), c.GetString(usernameKey))
	if err != nil {
		unauthorized(c, "Could not validate credentials")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username": user.Username,
		"email":    user.Email,
	})
}

// Logout is stateless; clients drop the token.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// AuthMiddleware protects routes. WebSocket upgrades may pass the token as
// the token query parameter.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Authorization header required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return h.JWTSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			unauthorized(c, "Invalid token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(c, "Invalid token")
			return
		}

		c.Set(usernameKey, sub)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if t := c.Query("token"); t != "" {
				return t, true
			}
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
