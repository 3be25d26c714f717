package handlers

import (
	"crmTasks/internal/handlers/dto"
	"crmTasks/internal/logger"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	CustomerService CustomerService
}

func NewCustomerHandler(customerService CustomerService) CustomerHandler {
	return CustomerHandler{
		CustomerService: customerService,
	}
}

func (s *CustomerHandler) Routes(r chi.Router) {
	r.Post("/customers", s.PostCustomer)
	r.Get("/customers/{id}", s.GetCustomerByID)
	r.Delete("/customers/{id}", s.DeleteCustomerByID)
}

func (s *CustomerHandler) PostCustomer(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var request dto.CustomerRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to decode JSON", zap.Error(err), zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	c, err := s.CustomerService.CreateCustomer(r.Context(), request.Name, request.Email)
	if err != nil {
		handleServiceError(w, r, err, "create_customer")
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromCustomer(c))
}

func (s *CustomerHandler) GetCustomerByID(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	c, err := s.CustomerService.GetCustomer(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_customer")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromCustomer(c))
}

// DeleteCustomerByID responds with the tasks that were detached from the customer.
func (s *CustomerHandler) DeleteCustomerByID(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	detached, err := s.CustomerService.DeleteCustomer(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "delete_customer")
		return
	}

	logger.Info("HTTP_OUT: customer deleted",
		zap.String("customer_id", id.String()),
		zap.Int("detached_tasks", len(detached)))

	responseWithJSON(w, http.StatusOK,
		toPayload("id", id),
		toPayload("detached_tasks", dto.FromTaskList(detached)),
	)
}
