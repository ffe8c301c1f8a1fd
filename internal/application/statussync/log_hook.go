package statussync

import (
	"context"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// LogHook records each status change of a record at info level. It is the
// default hook for record tables without a store-specific one.
func LogHook(logger Logger) Hook {
	return func(ctx context.Context, instance *entity.WorkflowInstance) error {
		currentStep := ""
		if instance.CurrentStepID != nil {
			currentStep = *instance.CurrentStepID
		}
		logger.Info("Record workflow status changed",
			"record_table", instance.RecordTable,
			"record_id", instance.RecordID,
			"instance_id", instance.ID,
			"status", instance.Status,
			"current_step_id", currentStep,
		)
		return nil
	}
}
