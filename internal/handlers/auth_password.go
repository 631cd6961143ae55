package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"ats/internal/logger"
	"ats/internal/services"
	"ats/internal/utils/helpers"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

const (
	msgResetRequested  = "If an account exists with that email, a reset link has been sent"
	msgResetSuccessful = "Password reset successful"
	msgInvalidToken    = "invalid or expired reset token"
)

type PasswordHandler struct {
	svc     *services.PasswordService
	siteURL string
	allowed map[string]struct{}
}

// NewPasswordHandler: siteURL — запасной origin для ссылки; allowedOrigins, если не пуст,
// ограничивает, какие Origin запроса можно подставлять в ссылку.
func NewPasswordHandler(svc *services.PasswordService, siteURL string, allowedOrigins []string) *PasswordHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &PasswordHandler{
		svc:     svc,
		siteURL: strings.TrimRight(siteURL, "/"),
		allowed: allowed,
	}
}

type forgotReq struct {
	Email string `json:"email"`
}

func (r forgotReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
	)
}

// Forgot godoc
// @Summary Запрос восстановления пароля
// @Description Отправляет письмо со ссылкой для сброса пароля. Ответ всегда одинаковый, даже если e-mail не найден.
// @Tags password
// @Accept json
// @Produce json
// @Param input body forgotReq true "Email пользователя"
// @Success 200 {object} helpers.MessageResponse
// @Failure 400 {object} helpers.ErrorResponse
// @Failure 500 {object} helpers.ErrorResponse
// @Router /api/password/forgot [post]
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var req forgotReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Невалидный payload в Forgot", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		log.Warn("Forgot без email")
		helpers.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.RequestReset(r.Context(), req.Email, h.appOrigin(r)); err != nil {
		if errors.Is(err, services.ErrValidation) {
			helpers.Error(w, http.StatusBadRequest, "email: cannot be blank.")
			return
		}
		log.Error("Сбой при запросе восстановления пароля", zap.String("email_masked", maskEmail(req.Email)), zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.Info("Запрошено восстановление пароля", zap.String("email_masked", maskEmail(req.Email)))
	helpers.Message(w, http.StatusOK, msgResetRequested)
}

type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r resetReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// Reset godoc
// @Summary Сброс пароля по токену
// @Description Устанавливает новый пароль по одноразовому токену из письма.
// @Tags password
// @Accept json
// @Produce json
// @Param input body resetReq true "Токен и новый пароль"
// @Success 200 {object} helpers.MessageResponse
// @Failure 400 {object} helpers.ErrorResponse
// @Failure 500 {object} helpers.ErrorResponse
// @Router /api/password/reset [post]
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var req resetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Невалидный payload в Reset", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		req.Token = ""
	}
	if err := req.Validate(); err != nil {
		log.Warn("Reset без token или newPassword")
		helpers.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
		log.Info("Пароль успешно сброшен")
		helpers.Message(w, http.StatusOK, msgResetSuccessful)
	case errors.Is(err, services.ErrValidation):
		helpers.Error(w, http.StatusBadRequest, "invalid payload")
	case services.IsTokenError(err):
		// Причину пишем в лог, клиенту — один текст.
		log.Warn("Сброс пароля отклонён", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, msgInvalidToken)
	case errors.Is(err, services.ErrCredentialUpdate):
		log.Error("Не удалось обновить пароль", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "failed to update password")
	default:
		log.Error("Сбой при сбросе пароля", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// appOrigin — origin, с которого пришёл запрос, если ему можно верить; иначе SITEURL.
func (h *PasswordHandler) appOrigin(r *http.Request) string {
	raw := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if raw == "" || raw == "null" {
		return h.siteURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" {
		return h.siteURL
	}
	origin := u.Scheme + "://" + u.Host
	if len(h.allowed) > 0 {
		if _, ok := h.allowed[origin]; !ok {
			return h.siteURL
		}
	}
	return origin
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	name := email[:at]
	if len(name) > 2 {
		name = name[:2]
	}
	return name + "***" + email[at:]
}
