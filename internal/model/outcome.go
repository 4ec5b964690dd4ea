package model

// Category tags a pipeline and every ledger entry it writes.
type Category string

const (
	CategoryApply    Category = "job_apply"
	CategoryEmail    Category = "job_email"
	CategoryProspect Category = "prospect"
)

// Action is the outcome recorded for one attempted target.
type Action string

const (
	ActionApplied Action = "applied"
	ActionEmailed Action = "emailed"
	ActionFailed  Action = "failed"
	ActionDryRun  Action = "dry_run"
	ActionSkipped Action = "skipped"
)

// SuccessAction is the tag recorded when a category's side effect succeeds.
func (c Category) SuccessAction() Action {
	if c == CategoryApply {
		return ActionApplied
	}
	return ActionEmailed
}
