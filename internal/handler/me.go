package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/groundops/staff-sizer/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func currentUser(r *http.Request) *domain.User {
	return r.Context().Value(MyInfoCtx).(*domain.User)
}

// setPassword 只更新内存中的哈希，由调用方负责写回数据库
func setPassword(user *domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return nil
}

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取个人信息成功", currentUser(r))
}

// GetMySizingRuns 列出当前用户发起的测算，只包含概要信息
func (h *Handler) GetMySizingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetSizingRunsByCreator(currentUser(r).ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取我的测算列表成功", runs)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 复制一份再修改，避免写库失败时上下文里的用户已经带上新哈希
	user := *currentUser(r)
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		slog.Warn("修改密码时旧密码错误", "username", user.Username)
		h.errorResponse(w, r, "旧密码错误")
		return
	}

	if err := setPassword(&user, req.NewPassword); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	err := h.repository.UpdateUser(&user)
	if errors.Is(err, sql.ErrNoRows) {
		h.errorResponse(w, r, "账户已被删除或修改，请重新登录")
		return
	}
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	slog.Info("用户已修改密码", "username", user.Username)
	h.successResponse(w, r, "修改密码成功，下次登录请使用新密码", nil)
}
