package handler

import (
	"net/http"
	"strconv"
	"time"

	"alquicaja/internal/apierror"
	"alquicaja/internal/dto"
	"alquicaja/internal/middleware"
	"alquicaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct {
	svc    service.CajaService
	cambio service.CambioService
}

func NewCajaHandler(svc service.CajaService, cambio service.CambioService) *CajaHandler {
	return &CajaHandler{svc: svc, cambio: cambio}
}

// Abrir godoc
// @Summary Abre la caja del día con un saldo inicial
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	usuarioID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Abrir(c.Request.Context(), usuarioID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetActiva returns the currently open session, or 404 if the till is closed.
func (h *CajaHandler) GetActiva(c *gin.Context) {
	resp, err := h.svc.GetActiva(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New("No hay caja abierta"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarMovimiento godoc
// @Summary Registra un ingreso, egreso o devolución en el libro de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoRequest true "Movimiento"
// @Success 201 {object} dto.MovimientoResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/movimiento [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CambiarMetodoPago corrects the payment method of an existing movement.
func (h *CajaHandler) CambiarMetodoPago(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return
	}
	var req dto.CambiarMetodoPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CambiarMetodoPago(c.Request.Context(), id, req.MetodoPago)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarMovimientos returns the full ledger for a date (default today),
// in insertion order.
func (h *CajaHandler) ListarMovimientos(c *gin.Context) {
	fecha, ok := parseFechaQuery(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), fecha)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fecha": fecha.Format("2006-01-02"), "movimientos": resp})
}

// Resumen godoc
// @Summary Resumen de caja en tiempo real para una fecha
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param fecha query string false "Fecha YYYY-MM-DD (default hoy)"
// @Success 200 {object} dto.ResumenCajaResponse
// @Router /v1/caja/resumen [get]
func (h *CajaHandler) Resumen(c *gin.Context) {
	fecha, ok := parseFechaQuery(c)
	if !ok {
		return
	}
	resp, err := h.svc.Resumen(c.Request.Context(), fecha)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Buscar pages through historical movements by date range, free text and
// payment method.
func (h *CajaHandler) Buscar(c *gin.Context) {
	var f dto.BusquedaFilter

	desde, err := time.Parse("2006-01-02", c.DefaultQuery("desde", time.Now().AddDate(0, -1, 0).Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("desde inválida, formato esperado YYYY-MM-DD"))
		return
	}
	hasta, err := time.Parse("2006-01-02", c.DefaultQuery("hasta", time.Now().Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("hasta inválida, formato esperado YYYY-MM-DD"))
		return
	}
	f.Desde = desde
	f.Hasta = hasta
	f.Texto = c.Query("texto")
	f.MetodoPago = c.Query("metodo_pago")
	f.Skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	resp, err := h.svc.Buscar(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CambiarItem prices an equipment swap and records the tariff difference.
func (h *CajaHandler) CambiarItem(c *gin.Context) {
	var req dto.CambioItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.cambio.CambiarItem(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusOK, gin.H{"detail": "Sin diferencia de tarifa, no se registró movimiento"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}
