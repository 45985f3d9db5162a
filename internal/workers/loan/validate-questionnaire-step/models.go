// internal/workers/loan/validate-questionnaire-step/models.go
package validatequestionnairestep

import (
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/validation"
)

type Input struct {
	Step int              `json:"step"`
	Form application.Form `json:"form"`
}

type Output struct {
	Valid             bool              `json:"valid"`
	Errors            validation.Errors `json:"errors"`
	FirstInvalidField string            `json:"firstInvalidField,omitempty"`
	NextStep          int               `json:"nextStep"`
	ReadyToSubmit     bool              `json:"readyToSubmit"`
	ProgressPercent   int               `json:"progressPercent"`
}
