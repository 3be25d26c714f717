package handlers

import (
	"crmTasks/internal/handlers/dto"
	"crmTasks/internal/logger"
	"crmTasks/internal/models/task"
	"crmTasks/internal/service"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.GetAllTasks)
		r.Post("/", s.PostTask)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTaskByID)
			r.Put("/", s.UpdateTaskByID)
			r.Delete("/", s.DeleteTaskByID)
		})
	})
	r.Get("/customers/{id}/tasks", s.GetTasksByCustomerID)
	r.Get("/health", s.HealthCheck)
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: health check failed", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", "crm-tasks"),
		)
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", "crm-tasks"),
	)
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	request, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	created, err := s.TaskService.CreateTask(r.Context(), request.ToService())
	if err != nil {
		if !writePersistedWithError(w, http.StatusCreated, created, err) {
			handleServiceError(w, r, err, "create_task")
		}
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.String("task_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	writeJSON(w, http.StatusCreated, dto.FromTask(created))
}

func (s *TaskHandler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	tasks, err := s.TaskService.GetAllTasks(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "get_tasks")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (s *TaskHandler) GetTasksByCustomerID(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	tasks, err := s.TaskService.GetAllTasksByCustomerID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_customer_tasks")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(r)
	if !ok {
		logger.Warn("HTTP: invalid task id",
			zap.String("id", chi.URLParam(r, "id")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := s.TaskService.GetTaskByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(t))
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	request, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	updated, err := s.TaskService.UpdateTask(r.Context(), id, request.ToService())
	if err != nil {
		if !writePersistedWithError(w, http.StatusOK, updated, err) {
			handleServiceError(w, r, err, "update_task")
		}
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(updated))
}

func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(r)
	if !ok {
		responseWithError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	deleted, err := s.TaskService.DeleteTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: task deleted",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(deleted))
}

func decodeTaskRequest(w http.ResponseWriter, r *http.Request) (dto.TaskRequest, bool) {
	var request dto.TaskRequest

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return request, false
	}

	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to decode JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return request, false
	}
	return request, true
}

// writePersistedWithError answers a change that was saved while a later step
// failed: the reminder job was not synchronized or the completion time was not
// recorded. It reports false for any other error.
func writePersistedWithError(w http.ResponseWriter, code int, t *task.Task, err error) bool {
	var businessErr *service.BusinessError
	if t == nil || !errors.As(err, &businessErr) {
		return false
	}

	var field string
	switch businessErr.Code {
	case service.CodeScheduleFailure:
		field = "reminder_error"
	case service.CodeCompletionStamp:
		field = "completion_error"
	default:
		return false
	}

	logger.Warn("HTTP: task saved but left inconsistent",
		zap.String("task_id", t.UUID.String()),
		zap.String("error_code", businessErr.Code))

	responseWithJSON(w, code,
		toPayload("task", dto.FromTask(t)),
		toPayload(field, map[string]any{
			"error":   businessErr.Code,
			"message": businessErr.Message,
		}),
	)
	return true
}
