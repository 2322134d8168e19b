package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/vamo-app/backend/internal/middleware"
	"github.com/vamo-app/backend/internal/models"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email" example:"founder@example.com"` // User email address
	Password    string `json:"password" validate:"required,min=6" example:"password123"`      // User password
	DisplayName string `json:"displayName" validate:"required,min=2" example:"Ada"`           // Display name
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"founder@example.com"` // User email
	Password string `json:"password" validate:"required,min=6" example:"password123"`      // User password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token   string         `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Profile models.Profile `json:"profile"`                                                 // Profile information
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" validate:"omitempty,min=1,max=100"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
	}
}

// Register handles user registration
// @Summary Register a new founder
// @Description Register with email, password and display name; starts with a zero pineapple balance
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to register", http.StatusInternalServerError, nil)
		return
	}

	profile := models.Profile{
		ID:          uuid.NewString(),
		Email:       strings.ToLower(req.Email),
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now(),
	}

	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO profiles (id, email, display_name, password_hash, pineapple_balance, is_admin, created_at)
		VALUES ($1, $2, $3, $4, 0, false, $5)`,
		profile.ID, profile.Email, profile.DisplayName, hashed, profile.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Registration insert failed for %s: %v", profile.Email, err)
		SendErrorResponse(w, CodeValidation, "Email already registered", http.StatusConflict, nil)
		return
	}

	token, err := generateJWT(profile.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", profile.ID, err)
		SendErrorResponse(w, CodeInternal, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Registration successful for %s", profile.Email)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Profile: profile})
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var profile models.Profile
	var hashed string
	var avatarURL sql.NullString
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, email, display_name, avatar_url, password_hash, pineapple_balance, is_admin, created_at
		FROM profiles WHERE email = $1`,
		strings.ToLower(req.Email)).Scan(&profile.ID, &profile.Email, &profile.DisplayName,
		&avatarURL, &hashed, &profile.PineappleBalance, &profile.IsAdmin, &profile.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Login failed - user not found: %s", req.Email)
		SendErrorResponse(w, CodeUnauthorized, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	profile.AvatarURL = avatarURL.String

	if !verifyPassword(req.Password, hashed) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Email)
		SendErrorResponse(w, CodeUnauthorized, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(profile.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", profile.ID, err)
		SendErrorResponse(w, CodeInternal, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for %s", profile.Email)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Profile: profile})
}

// Logout handles user logout
// @Summary Logout
// @Description Logout and blacklist the presented token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// GetProfile returns the authenticated user's profile
// @Summary Get profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /profile [get]
func (s *AuthService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var profile models.Profile
	var avatarURL sql.NullString
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, email, display_name, avatar_url, pineapple_balance, is_admin, created_at
		FROM profiles WHERE id = $1`,
		userID).Scan(&profile.ID, &profile.Email, &profile.DisplayName, &avatarURL,
		&profile.PineappleBalance, &profile.IsAdmin, &profile.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Profile not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Failed to fetch profile %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to fetch profile", http.StatusInternalServerError, nil)
		return
	}
	profile.AvatarURL = avatarURL.String

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// UpdateProfile updates display name and avatar
// @Summary Update profile
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile update"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /profile [put]
func (s *AuthService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdateProfileRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.DisplayName == "" && req.AvatarURL == "" {
		SendErrorResponse(w, CodeValidation, "Nothing to update", http.StatusBadRequest, nil)
		return
	}

	_, err := s.db.ExecContext(r.Context(), `
		UPDATE profiles
		SET display_name = COALESCE(NULLIF($1, ''), display_name),
		    avatar_url = COALESCE(NULLIF($2, ''), avatar_url)
		WHERE id = $3`,
		req.DisplayName, req.AvatarURL, userID)
	if err != nil {
		log.Printf("[AUTH] Profile update failed for %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to update profile", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Profile updated"})
}

func generateJWT(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
