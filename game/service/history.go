package service

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Normalize applies pagination defaults
func (o HistoryOptions) Normalize() HistoryOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = defaultHistoryLimit
	}
	if o.Limit > maxHistoryLimit {
		o.Limit = maxHistoryLimit
	}
	if o.Order != "asc" {
		o.Order = "desc"
	}
	return o
}

// Offset is the number of records before the requested page
func (o HistoryOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// NewHistoryResponse wraps one page of steps with pagination metadata
func NewHistoryResponse(steps []StepRecord, total int, opts HistoryOptions) *HistoryResponse {
	opts = opts.Normalize()

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}
	if steps == nil {
		steps = []StepRecord{}
	}

	return &HistoryResponse{
		Steps:       steps,
		TotalSteps:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}
