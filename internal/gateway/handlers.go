package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/logger"
	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/types"
)

// Handlers contains HTTP handlers for consent-ledger operations
type Handlers struct {
	service *Service
	log     *logger.Logger
}

// NewHandlers creates new gateway HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{service: service, log: log}
}

// RegisterRoutes registers gateway routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		users := v1.Group("/users")
		users.Use(h.AuthMiddleware())
		{
			users.GET("/:username", h.QueryUser)
		}

		patients := v1.Group("/patients")
		patients.Use(h.AuthMiddleware())
		{
			patients.POST("/:id/requests", h.SubmitRequest)
			patients.DELETE("/:id/requests/:doctor", h.DenyRequest)
			patients.POST("/:id/approvals/:doctor", h.ApproveRequest)
			patients.POST("/:id/approvals/:doctor/key", h.EnableAccess)
			patients.DELETE("/:id/approvals/:doctor", h.RemoveRequest)
			patients.POST("/:id/records", h.SubmitMedicalRecord)
		}

		doctors := v1.Group("/doctors")
		doctors.Use(h.AuthMiddleware())
		{
			doctors.DELETE("/:id/patients/:patient", h.RemoveAccess)
			doctors.GET("/:id/patients/:patient/key", h.GetWrappedKey)
		}

		recordsGroup := v1.Group("/records")
		recordsGroup.Use(h.AuthMiddleware())
		{
			recordsGroup.POST("", h.CreateMedicalRecord)
			recordsGroup.GET("/:hash", h.QueryMedicalRecord)
		}

		assets := v1.Group("/assets")
		assets.Use(h.AuthMiddleware())
		{
			assets.GET("", h.GetAllAssets)
			assets.GET("/:key/history", h.GetAssetHistory)
		}
	}
}

type registerRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Role         string `json:"identityRole" binding:"required,oneof=patient doctor"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type consentRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
}

type enableAccessRequest struct {
	SymmetricKey string `json:"symmetricKey" binding:"required"`
}

type createRecordRequest struct {
	PatientID   string `json:"patientId" binding:"required"`
	DoctorID    string `json:"doctorId" binding:"required"`
	ContentHash string `json:"contentHash" binding:"required"`
}

type submitRecordRequest struct {
	ContentHash string `json:"contentHash" binding:"required"`
}

// Register handles principal registration
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	principal := &types.Principal{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Organization: req.Organization,
		Role:         types.Role(req.Role),
	}
	profile, err := h.service.Register(c.Request.Context(), principal, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "user": profile})
}

// Login handles credential verification and session issuance
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, profile, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		// An unknown username is reported like a bad password.
		if types.HasCode(err, types.CodeNotFound) {
			writeError(c, types.NewInvalidCredentialError("invalid credentials for %s", req.Username))
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "token": token, "user": profile})
}

// QueryUser returns a principal's public profile
func (h *Handlers) QueryUser(c *gin.Context) {
	profile, err := h.service.QueryUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "user": profile})
}

// SubmitRequest records a doctor's access request against a patient
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.SubmitRequest(c.Request.Context(), c.Param("id"), req.DoctorID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DenyRequest removes a pending access request
func (h *Handlers) DenyRequest(c *gin.Context) {
	if err := h.service.DenyRequest(c.Request.Context(), c.Param("id"), c.Param("doctor")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ApproveRequest approves a pending access request
func (h *Handlers) ApproveRequest(c *gin.Context) {
	if err := h.service.ApproveRequest(c.Request.Context(), c.Param("id"), c.Param("doctor")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// EnableAccess discloses the patient's symmetric key to an approved doctor
func (h *Handlers) EnableAccess(c *gin.Context) {
	var req enableAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.EnableAccess(c.Request.Context(), c.Param("id"), c.Param("doctor"), req.SymmetricKey); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RemoveRequest revokes an approved request
func (h *Handlers) RemoveRequest(c *gin.Context) {
	if err := h.service.RemoveRequest(c.Request.Context(), c.Param("id"), c.Param("doctor")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RemoveAccess withdraws a doctor's wrapped key for a patient
func (h *Handlers) RemoveAccess(c *gin.Context) {
	if err := h.service.RemoveAccess(c.Request.Context(), c.Param("patient"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetWrappedKey returns the stored disclosure-key ciphertext
func (h *Handlers) GetWrappedKey(c *gin.Context) {
	wrapped, err := h.service.WrappedKey(c.Request.Context(), c.Param("id"), c.Param("patient"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "wrappedKey": wrapped})
}

// CreateMedicalRecord writes a content-addressed record reference
func (h *Handlers) CreateMedicalRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ref, err := h.service.CreateMedicalRecord(c.Request.Context(), req.PatientID, req.DoctorID, req.ContentHash)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "record": ref})
}

// SubmitMedicalRecord appends a record reference to the patient's list
func (h *Handlers) SubmitMedicalRecord(c *gin.Context) {
	var req submitRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.SubmitMedicalRecord(c.Request.Context(), c.Param("id"), req.ContentHash); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// QueryMedicalRecord looks up a record reference by content hash
func (h *Handlers) QueryMedicalRecord(c *gin.Context) {
	ref, err := h.service.QueryMedicalRecord(c.Request.Context(), c.Param("hash"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "record": ref})
}

// GetAllAssets scans current ledger values over an optional key range
func (h *Handlers) GetAllAssets(c *gin.Context) {
	results, err := h.service.RangeQuery(c.Request.Context(), c.Query("start"), c.Query("end"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "assets": results})
}

// GetAssetHistory returns every committed version of a ledger key
func (h *Handlers) GetAssetHistory(c *gin.Context) {
	entries, err := h.service.AssetHistory(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "history": entries})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"code":    "INVALID_INPUT",
		"message": err.Error(),
	})
}

// writeError maps a core error to its HTTP status and the
// {status, code, message} error shape.
func writeError(c *gin.Context, err error) {
	var le *types.LedgerError
	if !errors.As(err, &le) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"code":    string(types.CodeStoreFailure),
			"message": "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch le.Code {
	case types.CodeNotFound:
		status = http.StatusNotFound
	case types.CodeAlreadyExists:
		status = http.StatusConflict
	case types.CodeInvalidCredential:
		status = http.StatusUnauthorized
	case types.CodeInvalidTransition:
		status = http.StatusConflict
	case types.CodeStoreFailure:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"status":  le.Status,
		"code":    string(le.Code),
		"message": le.Message,
	})
}
