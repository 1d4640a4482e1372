package incidents

import (
	"strings"

	"worksafety/core/apperr"
	"worksafety/core/store"
)

const maxNameLen = 120

// Validate checks the fields every incident needs plus the details its type requires.
func Validate(inc *store.Incident) error {
	inc.Name = strings.TrimSpace(inc.Name)
	if inc.Name == "" {
		return apperr.Invalid("name", "common.required", "name is required")
	}
	if len(inc.Name) > maxNameLen {
		return apperr.Invalid("name", "common.tooLong", "name must be at most %d characters", maxNameLen)
	}
	switch inc.Type {
	case store.IncidentTypeNearMiss:
		if inc.PotentialInjury == nil {
			return apperr.Invalid("potential_injury", "common.required", "potential injury must be answered for a near miss")
		}
		if err := requireText("principal_cause", inc.PrincipalCause); err != nil {
			return err
		}
		if err := requireText("consequence_pa", inc.ConsequencePA); err != nil {
			return err
		}
		return requireText("solution_pa", inc.SolutionPA)
	case store.IncidentTypeObservation:
		if err := requireText("consequence_ose", inc.ConsequenceOSE); err != nil {
			return err
		}
		if err := requireText("solution_ose", inc.SolutionOSE); err != nil {
			return err
		}
		if inc.CorrectiveAction != nil && *inc.CorrectiveAction && strings.TrimSpace(inc.CorrectivePhoto) == "" {
			return apperr.Invalid("corrective_photo", "incidents.correctivePhotoRequired", "a photo of the corrective action is required")
		}
		return nil
	default:
		return apperr.Invalid("incident_type", "incidents.typeInvalid", "incident type must be PA or OSE")
	}
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.Invalid(field, "common.required", "%s is required", field)
	}
	return nil
}
