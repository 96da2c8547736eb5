package handler

import (
	"errors"
	"strings"

	"github.com/evandrarf/halpi-mastery/internal/delivery/http/domain"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/entity"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/middleware"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/usecase"
	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/evandrarf/halpi-mastery/internal/pkg/response"
	"github.com/evandrarf/halpi-mastery/internal/pkg/validate"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type (
	MasteryHandler interface {
		Start(ctx *fiber.Ctx) error
		GetSession(ctx *fiber.Ctx) error
		SubmitIdentification(ctx *fiber.Ctx) error
		RequestHint(ctx *fiber.Ctx) error
		ResetIdentification(ctx *fiber.Ctx) error
		StartRestitution(ctx *fiber.Ctx) error
		GetConcept(ctx *fiber.Ctx) error
		SaveAnswers(ctx *fiber.Ctx) error
		Evaluate(ctx *fiber.Ctx) error
		Finish(ctx *fiber.Ctx) error
		Restart(ctx *fiber.Ctx) error
	}

	masteryHandler struct {
		validator *validate.Validator
		logger    *logrus.Logger
		usecase   usecase.MasteryUsecase
	}
)

func NewMasteryHandler(validator *validate.Validator, logger *logrus.Logger, usecase usecase.MasteryUsecase) MasteryHandler {
	return &masteryHandler{
		validator: validator,
		logger:    logger,
		usecase:   usecase,
	}
}

// toHTTPError maps engine errors onto status codes.
func toHTTPError(err error) error {
	var fieldsErr *validate.FieldsError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fieldsErr):
		return fieldsErr
	case errors.As(err, &fiberErr):
		return fiberErr
	case errors.Is(err, mastery.ErrEmptyAnswer):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, mastery.ErrNoConcepts),
		errors.Is(err, mastery.ErrUnknownConcept),
		errors.Is(err, mastery.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, mastery.ErrIdentificationIncomplete),
		errors.Is(err, mastery.ErrRestitutionIncomplete),
		errors.Is(err, mastery.ErrInvalidStep),
		errors.Is(err, mastery.ErrSuperseded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

func (h *masteryHandler) failed(ctx *fiber.Ctx, msg string, err error) error {
	return response.NewFailed(msg, toHTTPError(err), h.logger).Send(ctx)
}

// sessionKey copies its parts: sessions outlive the request and fiber
// strings may alias the reused request buffer.
func sessionKey(ctx *fiber.Ctx, learnerID string) mastery.SessionKey {
	return mastery.SessionKey{
		ActivityID: middleware.ActivityID(ctx),
		LearnerID:  utils.CopyString(strings.TrimSpace(learnerID)),
	}
}

func conceptParam(ctx *fiber.Ctx) string {
	return utils.CopyString(ctx.Params("concept_id"))
}

// POST /activities/:activity_id/mastery/start
func (h *masteryHandler) Start(ctx *fiber.Ctx) error {
	var req entity.LearnerRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_START_FAILED, err)
	}

	view, err := h.usecase.Start(ctx.UserContext(), sessionKey(ctx, req.LearnerID))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_START_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_START_SUCCESS, view, nil).Send(ctx)
}

// GET /activities/:activity_id/mastery?learner_id=
func (h *masteryHandler) GetSession(ctx *fiber.Ctx) error {
	var req entity.LearnerRequest
	if err := h.validator.ParseQueryAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_GET_SESSION_FAILED, err)
	}

	view, err := h.usecase.GetSession(ctx.UserContext(), sessionKey(ctx, req.LearnerID))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_GET_SESSION_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_GET_SESSION_SUCCESS, view, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/identification/answer
func (h *masteryHandler) SubmitIdentification(ctx *fiber.Ctx) error {
	var req entity.IdentificationAnswerRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_IDENTIFICATION_ANSWER_FAILED, err)
	}

	result, err := h.usecase.SubmitIdentification(ctx.UserContext(), sessionKey(ctx, req.LearnerID), req.Answer)
	if err != nil {
		return h.failed(ctx, domain.MASTERY_IDENTIFICATION_ANSWER_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_IDENTIFICATION_ANSWER_SUCCESS, result, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/identification/hint
func (h *masteryHandler) RequestHint(ctx *fiber.Ctx) error {
	var req entity.LearnerRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_IDENTIFICATION_HINT_FAILED, err)
	}

	hint, err := h.usecase.RequestHint(ctx.UserContext(), sessionKey(ctx, req.LearnerID))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_IDENTIFICATION_HINT_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_IDENTIFICATION_HINT_SUCCESS, hint, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/identification/reset
func (h *masteryHandler) ResetIdentification(ctx *fiber.Ctx) error {
	var req entity.ConfirmRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_IDENTIFICATION_RESET_FAILED, err)
	}

	view, err := h.usecase.ResetIdentification(ctx.UserContext(), sessionKey(ctx, req.LearnerID))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_IDENTIFICATION_RESET_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_IDENTIFICATION_RESET_SUCCESS, view, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/restitution/start
func (h *masteryHandler) StartRestitution(ctx *fiber.Ctx) error {
	var req entity.LearnerRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_START_FAILED, err)
	}

	view, err := h.usecase.StartRestitution(ctx.UserContext(), sessionKey(ctx, req.LearnerID))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_START_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_RESTITUTION_START_SUCCESS, view, nil).Send(ctx)
}

// GET /activities/:activity_id/mastery/restitution/concepts/:concept_id?learner_id=
func (h *masteryHandler) GetConcept(ctx *fiber.Ctx) error {
	var req entity.LearnerRequest
	if err := h.validator.ParseQueryAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_CONCEPT_FAILED, err)
	}

	view, err := h.usecase.GetConcept(ctx.UserContext(), sessionKey(ctx, req.LearnerID), conceptParam(ctx))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_CONCEPT_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_RESTITUTION_CONCEPT_SUCCESS, view, nil).Send(ctx)
}

// PUT /activities/:activity_id/mastery/restitution/concepts/:concept_id/answers
func (h *masteryHandler) SaveAnswers(ctx *fiber.Ctx) error {
	var req entity.AnswersRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_ANSWERS_FAILED, err)
	}

	view, err := h.usecase.SaveAnswers(ctx.UserContext(), sessionKey(ctx, req.LearnerID), conceptParam(ctx), req.Answers)
	if err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_ANSWERS_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_RESTITUTION_ANSWERS_SUCCESS, view, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/restitution/concepts/:concept_id/evaluate
func (h *masteryHandler) Evaluate(ctx *fiber.Ctx) error {
	var req entity.EvaluateRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_EVALUATE_FAILED, err)
	}

	conceptID := conceptParam(ctx)
	result, err := h.usecase.Evaluate(ctx.UserContext(), sessionKey(ctx, req.LearnerID), conceptID, req.Answers)
	if errors.Is(err, mastery.ErrEvaluationPending) {
		return response.NewAccepted(domain.MASTERY_RESTITUTION_EVALUATE_PENDING, fiber.Map{"concept_id": conceptID}).Send(ctx)
	}
	if err != nil {
		return h.failed(ctx, domain.MASTERY_RESTITUTION_EVALUATE_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_RESTITUTION_EVALUATE_SUCCESS, result, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/finish
func (h *masteryHandler) Finish(ctx *fiber.Ctx) error {
	var req entity.FinishRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_FINISH_FAILED, err)
	}

	conclusion, err := h.usecase.Finish(ctx.UserContext(), sessionKey(ctx, req.LearnerID), mastery.FinishOptions{
		Override:          req.Override,
		EvaluateRemaining: req.EvaluateRemaining,
	})
	if err != nil {
		return h.failed(ctx, domain.MASTERY_FINISH_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_FINISH_SUCCESS, conclusion, nil).Send(ctx)
}

// POST /activities/:activity_id/mastery/restart
func (h *masteryHandler) Restart(ctx *fiber.Ctx) error {
	var req entity.ConfirmRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return h.failed(ctx, domain.MASTERY_RESTART_FAILED, err)
	}

	view, err := h.usecase.Restart(ctx.UserContext(), sessionKey(ctx, req.LearnerID))
	if err != nil {
		return h.failed(ctx, domain.MASTERY_RESTART_FAILED, err)
	}

	return response.NewSuccess(domain.MASTERY_RESTART_SUCCESS, view, nil).Send(ctx)
}
