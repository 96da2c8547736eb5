package domain

var (
	MASTERY_START_SUCCESS                 = "Mastery session started"
	MASTERY_START_FAILED                  = "Failed to start mastery session"
	MASTERY_GET_SESSION_SUCCESS           = "Mastery session retrieved"
	MASTERY_GET_SESSION_FAILED            = "Failed to retrieve mastery session"
	MASTERY_IDENTIFICATION_ANSWER_SUCCESS = "Answer checked"
	MASTERY_IDENTIFICATION_ANSWER_FAILED  = "Failed to check answer"
	MASTERY_IDENTIFICATION_HINT_SUCCESS   = "Hint revealed"
	MASTERY_IDENTIFICATION_HINT_FAILED    = "Failed to reveal hint"
	MASTERY_IDENTIFICATION_RESET_SUCCESS  = "Identification reset"
	MASTERY_IDENTIFICATION_RESET_FAILED   = "Failed to reset identification"
	MASTERY_RESTITUTION_START_SUCCESS     = "Restitution started"
	MASTERY_RESTITUTION_START_FAILED      = "Failed to start restitution"
	MASTERY_RESTITUTION_CONCEPT_SUCCESS   = "Concept retrieved"
	MASTERY_RESTITUTION_CONCEPT_FAILED    = "Failed to retrieve concept"
	MASTERY_RESTITUTION_ANSWERS_SUCCESS   = "Answers saved"
	MASTERY_RESTITUTION_ANSWERS_FAILED    = "Failed to save answers"
	MASTERY_RESTITUTION_EVALUATE_SUCCESS  = "Concept evaluated"
	MASTERY_RESTITUTION_EVALUATE_FAILED   = "Failed to evaluate concept"
	MASTERY_RESTITUTION_EVALUATE_PENDING  = "Evaluation already in progress"
	MASTERY_FINISH_SUCCESS                = "Mastery session completed"
	MASTERY_FINISH_FAILED                 = "Failed to complete mastery session"
	MASTERY_RESTART_SUCCESS               = "Mastery session restarted"
	MASTERY_RESTART_FAILED                = "Failed to restart mastery session"
)
