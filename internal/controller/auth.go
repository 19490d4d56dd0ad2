package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/dto"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/fazamuttaqien/eventcal/pkg/validator"
)

// POST /auth/register
func (h *Controller) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := validator.GetValidatedDTO[dto.RegisterDto](ctx)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Validated DTO not found in context", err))
		return
	}

	hashedPassword, err := helper.HashPassword(body.Password)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to hash password", err))
		return
	}

	user := model.User{
		Name:     strings.TrimSpace(body.Name),
		Username: strings.ToLower(body.Username),
		Email:    strings.ToLower(body.Email),
		Password: hashedPassword,
	}
	if err := h.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			appError.WriteError(w, appError.NewAppError(enum.AuthEmailAlreadyExists, "Email or username is already in use", err))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to create user", err))
		return
	}

	helper.ResponseJson(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    user,
	})
}

// POST /auth/login
func (h *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := validator.GetValidatedDTO[dto.LoginDto](ctx)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Validated DTO not found in context", err))
		return
	}

	// Unknown email and wrong password get the same answer.
	user, err := h.store.UserByEmail(ctx, strings.ToLower(body.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			appError.WriteError(w, appError.NewAppError(enum.AuthUnauthorizedAccess, "Invalid email or password", nil))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to query user", err))
		return
	}
	if err := helper.ComparePassword(user.Password, body.Password); err != nil {
		appError.WriteError(w, appError.NewAppError(enum.AuthUnauthorizedAccess, "Invalid email or password", nil))
		return
	}

	accessToken, expiresAt, err := h.signer.Sign(user.ID)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to generate access token", err))
		return
	}

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message":     "User logged in successfully",
		"user":        user,
		"accessToken": accessToken,
		"expiresAt":   expiresAt,
	})
}
