// internal/handlers/admin.go
package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// GET /admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.DashboardStats(c.Request.Context())
	if err != nil {
		internalError(c, err, "Failed to load dashboard")
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /admin/licenses
func (h *AdminHandler) GetLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	licenses, total, err := h.adminService.ListLicenses(c.Request.Context(), params)
	if err != nil {
		internalError(c, err, "Failed to list licenses")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params))
}

// GET /admin/licenses/new-key
func (h *AdminHandler) GenerateKey(c *gin.Context) {
	key, err := h.adminService.NewLicenseKey()
	if err != nil {
		internalError(c, err, "Failed to generate license key")
		return
	}

	utils.SuccessResponse(c, gin.H{"license_key": key})
}

// GET /admin/licenses/:id
func (h *AdminHandler) GetLicense(c *gin.Context) {
	id, ok := licenseIDParam(c)
	if !ok {
		return
	}

	license, err := h.adminService.GetLicense(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// POST /admin/licenses
func (h *AdminHandler) CreateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.IssueLicenseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	license, err := h.adminService.IssueLicense(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseCreated),
		"license": license,
	})
}

// PUT /admin/licenses/:id
func (h *AdminHandler) UpdateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := licenseIDParam(c)
	if !ok {
		return
	}

	var req services.UpdateLicenseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	license, err := h.adminService.UpdateLicense(c.Request.Context(), id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseUpdated),
		"license": license,
	})
}

// POST /admin/licenses/:id/suspend
func (h *AdminHandler) SuspendLicense(c *gin.Context) {
	h.changeStatus(c, h.adminService.Suspend, i18n.KeyLicenseSuspendedOK)
}

// POST /admin/licenses/:id/reactivate
func (h *AdminHandler) ReactivateLicense(c *gin.Context) {
	h.changeStatus(c, h.adminService.Reactivate, i18n.KeyLicenseReactivated)
}

func (h *AdminHandler) changeStatus(c *gin.Context, change func(ctx context.Context, id uuid.UUID) (*models.License, error), messageKey string) {
	lang := utils.GetLangFromContext(c)

	id, ok := licenseIDParam(c)
	if !ok {
		return
	}

	license, err := change(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, messageKey),
		"license": license,
	})
}

// POST /admin/licenses/:id/extend
func (h *AdminHandler) ExtendLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := licenseIDParam(c)
	if !ok {
		return
	}

	var req services.ExtendLicenseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	license, err := h.adminService.ExtendExpiry(c.Request.Context(), id, req.ExpireAt)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseExtended),
		"license": license,
	})
}

// DELETE /admin/licenses/:id
func (h *AdminHandler) DeleteLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := licenseIDParam(c)
	if !ok {
		return
	}

	if err := h.adminService.DeleteLicense(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseDeleted),
	})
}

// DELETE /admin/licenses/:id/domains/:domainId
func (h *AdminHandler) UnbindDomain(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := licenseIDParam(c)
	if !ok {
		return
	}

	bindingID, err := uuid.Parse(c.Param("domainId"))
	if err != nil {
		utils.NotFoundResponse(c, i18n.KeyDomainNotFound)
		return
	}

	if err := h.adminService.UnbindDomain(c.Request.Context(), id, bindingID); err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDomainUnbound),
	})
}

func (h *AdminHandler) handleError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	switch {
	case errors.Is(err, services.ErrLicenseNotFound):
		utils.NotFoundResponse(c, i18n.KeyLicenseNotFound)
	case errors.Is(err, services.ErrBindingNotFound):
		utils.NotFoundResponse(c, i18n.KeyDomainNotFound)
	case errors.Is(err, services.ErrDuplicateKey):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyLicenseKeyExists))
	case errors.Is(err, services.ErrInvalidExpiry),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidMaxDomains):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		internalError(c, err, "Admin operation failed")
	}
}

func licenseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyLicenseInvalidID), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindAndValidate answers 400 itself when the body is malformed or invalid.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func internalError(c *gin.Context, err error, message string) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error(message)
	utils.InternalErrorResponse(c)
}
